package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/internal/config"
	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
)

// Conn is the slice of Client the bridge needs.
type Conn interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topic string) error
}

// Bridge exposes zones and the system flag to Home Assistant. It announces
// discovery configs, polls state onto status topics and applies commands.
type Bridge struct {
	conn   Conn
	reg    *zone.Registry
	topics Topics
	qos    byte

	statusInterval    time.Duration
	discoveryInterval time.Duration

	mu    sync.Mutex
	known map[int64][]entity
}

func NewBridge(conn Conn, reg *zone.Registry, cfg config.MQTTConfig) *Bridge {
	return &Bridge{
		conn:              conn,
		reg:               reg,
		topics:            Topics{Prefix: cfg.TopicPrefix, DiscoveryPrefix: cfg.DiscoveryPrefix},
		qos:               byte(cfg.QoS),
		statusInterval:    time.Duration(cfg.StatusInterval) * time.Second,
		discoveryInterval: time.Duration(cfg.DiscoveryInterval) * time.Second,
		known:             make(map[int64][]entity),
	}
}

// Run announces, then publishes status every status interval and
// re-announces every discovery interval until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Announce(ctx); err != nil {
		log.Warn().Err(err).Msg("initial MQTT discovery incomplete")
	}

	status := time.NewTicker(b.statusInterval)
	defer status.Stop()
	discovery := time.NewTicker(b.discoveryInterval)
	defer discovery.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-status.C:
			if err := b.PublishStatus(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT status publish incomplete")
			}
		case <-discovery.C:
			if err := b.Announce(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT rediscovery incomplete")
			}
		}
	}
}

func (b *Bridge) publishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.conn.Publish(topic, payload, b.qos, true)
}

func (b *Bridge) announce(e entity) error {
	if err := b.publishJSON(e.configTopic(b.topics), e.device); err != nil {
		return fmt.Errorf("discovery %s: %w", e.device.UniqueID, err)
	}
	if err := b.conn.Subscribe(e.device.CmdT, b.qos, b.HandleCommand); err != nil {
		return fmt.Errorf("subscribe %s: %w", e.device.CmdT, err)
	}
	return nil
}

// Announce publishes discovery configs for the system switch and every
// zone, subscribes to their command topics and retracts zones that no
// longer exist.
func (b *Bridge) Announce(ctx context.Context) error {
	zones, err := b.reg.Zones(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if err := b.announce(systemEntity(b.topics)); err != nil {
		errs = append(errs, err)
	}

	current := make(map[int64]bool, len(zones))
	for _, z := range zones {
		current[z.ID] = true
		entities := zoneEntities(b.topics, z.Zone)
		for _, e := range entities {
			if err := b.announce(e); err != nil {
				errs = append(errs, err)
			}
		}
		b.known[z.ID] = entities
	}

	for id, entities := range b.known {
		if current[id] {
			continue
		}
		for _, e := range entities {
			// An empty retained config removes the entity from Home Assistant.
			if err := b.conn.Publish(e.configTopic(b.topics), nil, b.qos, true); err != nil {
				errs = append(errs, err)
			}
			if err := b.conn.Unsubscribe(e.device.CmdT); err != nil {
				errs = append(errs, err)
			}
		}
		delete(b.known, id)
		log.Info().Int64("zone_id", id).Msg("zone retracted from MQTT discovery")
	}

	log.Debug().Int("zones", len(zones)).Msg("MQTT discovery announced")
	return errors.Join(errs...)
}

func onOff(v bool) []byte {
	if v {
		return []byte("ON")
	}
	return []byte("OFF")
}

// PublishStatus publishes the live state of every zone and the system flag.
func (b *Bridge) PublishStatus(ctx context.Context) error {
	statuses, err := b.reg.Statuses(ctx)
	if err != nil {
		return err
	}

	var errs []error
	publish := func(topic string, payload []byte) {
		if err := b.conn.Publish(topic, payload, b.qos, false); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", topic, err))
		}
	}

	for _, st := range statuses {
		publish(b.topics.ZoneStatus(st.ID, ""), onOff(st.Active))
		publish(b.topics.ZoneStatus(st.ID, suffixTime), []byte(strconv.Itoa(st.Minutes())))
		publish(b.topics.ZoneStatus(st.ID, suffixAutoOff), onOff(st.AutoOff))
		publish(b.topics.ZoneStatus(st.ID, suffixEnabled), onOff(st.Enabled))
	}

	enabled, err := b.reg.SystemEnabled(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		publish(b.topics.SystemStatus(), onOff(enabled))
	}
	return errors.Join(errs...)
}

func parseSwitch(payload []byte) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON", "TRUE":
		return true, nil
	case "OFF", "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrBadPayload, payload)
}

// parseMinutes accepts integers and the "15.0" form Home Assistant number
// entities send, rounded to the nearest minute within [1, model.MaxRunMinutes].
func parseMinutes(payload []byte) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadPayload, payload)
	}
	m := math.Round(f)
	if !(m >= 1 && m <= model.MaxRunMinutes) {
		return 0, fmt.Errorf("%w: %q is outside 1-%d minutes", ErrBadPayload, payload, model.MaxRunMinutes)
	}
	return int(m), nil
}

// HandleCommand applies one message received on a command topic.
func (b *Bridge) HandleCommand(topic string, payload []byte) error {
	cmd, err := b.topics.parseCommand(topic)
	if err != nil {
		return err
	}
	ctx := context.Background()

	if cmd.system {
		enabled, err := parseSwitch(payload)
		if err != nil {
			return err
		}
		return b.reg.SetSystemEnabled(ctx, enabled)
	}

	switch cmd.suffix {
	case "":
		on, err := parseSwitch(payload)
		if err != nil {
			return err
		}
		if on {
			return b.reg.Activate(ctx, cmd.zoneID)
		}
		return b.reg.Deactivate(ctx, cmd.zoneID)
	case suffixTime:
		minutes, err := parseMinutes(payload)
		if err != nil {
			return err
		}
		return b.updateZone(ctx, cmd.zoneID, func(z *model.Zone) { z.RunDuration = model.MinutesToDuration(minutes) })
	case suffixAutoOff:
		v, err := parseSwitch(payload)
		if err != nil {
			return err
		}
		return b.updateZone(ctx, cmd.zoneID, func(z *model.Zone) { z.AutoOff = v })
	case suffixEnabled:
		v, err := parseSwitch(payload)
		if err != nil {
			return err
		}
		return b.updateZone(ctx, cmd.zoneID, func(z *model.Zone) { z.Enabled = v })
	}
	return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
}

func (b *Bridge) updateZone(ctx context.Context, id int64, apply func(*model.Zone)) error {
	z, err := b.reg.Zone(ctx, id)
	if err != nil {
		return err
	}
	updated := z.Zone
	apply(&updated)
	return b.reg.Update(ctx, updated)
}
