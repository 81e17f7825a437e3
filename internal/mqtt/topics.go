package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Entity suffixes appended to a zone's base topic.
const (
	suffixTime    = "_time"
	suffixAutoOff = "_auto_off_state"
	suffixEnabled = "_enabled_state"
)

// Topics builds every topic the controller publishes or listens on.
//
//	<prefix>_zone_<id>/command|status
//	<prefix>_zone_<id>_time/command|status
//	<prefix>_zone_<id>_auto_off_state/command|status
//	<prefix>_zone_<id>_enabled_state/command|status
//	<prefix>_system/command|status
//	<discovery>/<switch|number>/<unique id>/config
type Topics struct {
	Prefix          string
	DiscoveryPrefix string
}

func (t Topics) zoneBase(id int64) string {
	return fmt.Sprintf("%s_zone_%d", t.Prefix, id)
}

func (t Topics) systemBase() string {
	return t.Prefix + "_system"
}

func (t Topics) ZoneCommand(id int64, suffix string) string {
	return t.zoneBase(id) + suffix + "/command"
}

func (t Topics) ZoneStatus(id int64, suffix string) string {
	return t.zoneBase(id) + suffix + "/status"
}

func (t Topics) SystemCommand() string {
	return t.systemBase() + "/command"
}

func (t Topics) SystemStatus() string {
	return t.systemBase() + "/status"
}

// Availability carries "online" or "offline" (the last will).
func (t Topics) Availability() string {
	return t.Prefix + "/availability"
}

// Discovery is the Home Assistant config topic for one entity.
func (t Topics) Discovery(component, uniqueID string) string {
	return fmt.Sprintf("%s/%s/%s/config", t.DiscoveryPrefix, component, uniqueID)
}

// command identifies what a command topic addresses.
type command struct {
	system bool
	zoneID int64
	suffix string
}

// parseCommand maps a command topic back to its target.
func (t Topics) parseCommand(topic string) (command, error) {
	base, ok := strings.CutSuffix(topic, "/command")
	if !ok {
		return command{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	if base == t.systemBase() {
		return command{system: true}, nil
	}

	rest, ok := strings.CutPrefix(base, t.Prefix+"_zone_")
	if !ok {
		return command{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	digits := rest
	suffix := ""
	if i := strings.IndexByte(rest, '_'); i >= 0 {
		digits, suffix = rest[:i], rest[i:]
	}
	switch suffix {
	case "", suffixTime, suffixAutoOff, suffixEnabled:
	default:
		return command{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id <= 0 {
		return command{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	return command{zoneID: id, suffix: suffix}, nil
}
