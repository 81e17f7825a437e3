package mqtt

import (
	"fmt"

	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
)

const (
	componentSwitch = "switch"
	componentNumber = "number"
)

// Device is a Home Assistant discovery payload in abbreviated form.
type Device struct {
	Name     string `json:"name"`
	StatT    string `json:"stat_t"`
	CmdT     string `json:"cmd_t"`
	UniqueID string `json:"uniq_id"`
	Icon     string `json:"ic"`
}

// entity pairs a discovery payload with the component it is announced as.
type entity struct {
	component string
	device    Device
}

func (e entity) configTopic(t Topics) string {
	return t.Discovery(e.component, e.device.UniqueID)
}

func zoneEntities(t Topics, z model.Zone) []entity {
	base := t.zoneBase(z.ID)
	mk := func(component, suffix, label, icon string) entity {
		return entity{
			component: component,
			device: Device{
				Name:     fmt.Sprintf("%s%s", z.Name, label),
				StatT:    t.ZoneStatus(z.ID, suffix),
				CmdT:     t.ZoneCommand(z.ID, suffix),
				UniqueID: base + suffix,
				Icon:     icon,
			},
		}
	}
	return []entity{
		mk(componentSwitch, "", "", "mdi:sprinkler-variant"),
		mk(componentNumber, suffixTime, " run time", "mdi:timer"),
		mk(componentSwitch, suffixAutoOff, " auto off", "mdi:electric-switch"),
		mk(componentSwitch, suffixEnabled, " enabled", "mdi:electric-switch"),
	}
}

func systemEntity(t Topics) entity {
	return entity{
		component: componentSwitch,
		device: Device{
			Name:     "Sprinkler system",
			StatT:    t.SystemStatus(),
			CmdT:     t.SystemCommand(),
			UniqueID: t.systemBase(),
			Icon:     "mdi:electric-switch",
		},
	}
}
