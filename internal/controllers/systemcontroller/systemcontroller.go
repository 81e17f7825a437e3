package systemcontroller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
)

const (
	WinterizeOnDuration   = 60 * time.Second
	WinterizeSoakDuration = 180 * time.Second
	TestDuration          = 12 * time.Second
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
)

// Controller drives the whole-system behaviours: the gated sequential run,
// the winterize purge and the test cycle. All bulk operations block for
// their full duration; use Start to run them on the worker goroutine.
type Controller struct {
	reg      *zone.Registry
	observer JobObserver

	mu         sync.Mutex
	current    *job
	last       *model.Job
	root       context.Context
	cancelRoot context.CancelFunc
	wg         sync.WaitGroup
}

func New(reg *zone.Registry, opts ...Option) *Controller {
	c := &Controller{
		reg:      reg,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.root, c.cancelRoot = context.WithCancel(context.Background())
	return c
}

type Option func(*Controller)

func WithObserver(o JobObserver) Option {
	return func(c *Controller) { c.observer = o }
}

// Run waters every enabled zone in system order, one at a time. When the
// system flag is off nothing is touched and OutcomeSkipped is returned.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	enabled, err := c.reg.SystemEnabled(ctx)
	if err != nil {
		return "", err
	}
	if !enabled {
		log.Info().Msg("system disabled, skipping scheduled run")
		return OutcomeSkipped, nil
	}

	zones, err := c.reg.Zones(ctx)
	if err != nil {
		return "", err
	}
	for _, z := range zones {
		if !z.Enabled {
			log.Debug().Int64("zone_id", z.ID).Str("zone", z.Name).Msg("zone disabled, not watering")
			continue
		}
		if err := c.runZone(ctx, z, z.RunDuration); err != nil {
			return "", err
		}
	}
	log.Info().Int("zones", len(zones)).Msg("system run completed")
	return OutcomeCompleted, nil
}

// Winterize purges every zone, enabled or not: 60s open followed by a 180s soak.
func (c *Controller) Winterize(ctx context.Context) error {
	zones, err := c.reg.Zones(ctx)
	if err != nil {
		return err
	}
	for _, z := range zones {
		if err := c.runZone(ctx, z, WinterizeOnDuration); err != nil {
			return err
		}
		log.Info().Int64("zone_id", z.ID).Dur("soak", WinterizeSoakDuration).Msg("winterize soak")
		if err := c.reg.Clock().Sleep(ctx, WinterizeSoakDuration); err != nil {
			return err
		}
	}
	log.Info().Int("zones", len(zones)).Msg("winterize completed")
	return nil
}

// TestAll opens every zone for TestDuration in system order.
func (c *Controller) TestAll(ctx context.Context) error {
	zones, err := c.reg.Zones(ctx)
	if err != nil {
		return err
	}
	for _, z := range zones {
		if err := c.runZone(ctx, z, TestDuration); err != nil {
			return err
		}
	}
	log.Info().Int("zones", len(zones)).Msg("zone test completed")
	return nil
}

// runZone runs one zone of a bulk operation. A zone deleted since the list
// was read is skipped; any other failure aborts the bulk operation.
func (c *Controller) runZone(ctx context.Context, z *zone.Zone, d time.Duration) error {
	err := c.reg.RunFor(ctx, z.ID, d)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, zone.ErrNotFound):
		log.Warn().Int64("zone_id", z.ID).Msg("zone removed during run, skipping")
		return nil
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("zone %d (%s): %w", z.ID, z.Name, err)
	}
}

func (c *Controller) SetEnabled(ctx context.Context, enabled bool) error {
	return c.reg.SetSystemEnabled(ctx, enabled)
}

func (c *Controller) Enabled(ctx context.Context) (bool, error) {
	return c.reg.SystemEnabled(ctx)
}
