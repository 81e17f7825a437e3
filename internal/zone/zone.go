package zone

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/internal/gpio"
	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
)

// Zone binds a stored definition to the pin driver and the auto-off timers.
// Zones are rebuilt from the store on every registry call; two values with
// the same ID drive the same valve.
type Zone struct {
	model.Zone

	driver     gpio.Driver
	activeHigh bool
	timers     *TimerManager
	clock      Clock
	observer   Observer
}

func (z *Zone) GPIOPin() model.GPIOPin {
	return model.GPIOPin{Number: z.Pin, ActiveHigh: z.activeHigh}
}

func (z *Zone) set(active bool) error {
	if err := z.driver.Set(z.GPIOPin(), active); err != nil {
		return err
	}
	z.observer.ZoneChanged(z.Zone, active)
	return nil
}

// Activate opens the valve. Any pending auto-off for this zone is cancelled first.
func (z *Zone) Activate() error {
	z.timers.Cancel(z.ID)
	return z.set(true)
}

// Deactivate cancels any pending auto-off and closes the valve.
func (z *Zone) Deactivate() error {
	z.timers.Cancel(z.ID)
	return z.set(false)
}

// RunFor opens the valve, waits d, and closes it. The valve is closed even
// when ctx ends the wait early, in which case ctx.Err() is returned.
// It takes no registry lock; Registry.RunFor is the exclusive form.
func (z *Zone) RunFor(ctx context.Context, d time.Duration) error {
	return z.run(ctx, d, z.Activate, z.Deactivate)
}

// run is the open, wait, close sequence shared by both RunFor forms.
func (z *Zone) run(ctx context.Context, d time.Duration, openValve, closeValve func() error) error {
	if err := openValve(); err != nil {
		return err
	}
	log.Info().Int64("zone_id", z.ID).Str("zone", z.Name).Dur("duration", d).Msg("zone running")

	waitErr := z.clock.Sleep(ctx, d)
	if err := closeValve(); err != nil {
		return err
	}
	return waitErr
}

// RunUnattended opens the valve and returns. When AutoOff is set the valve
// closes on its own after d.
func (z *Zone) RunUnattended(d time.Duration) error {
	if err := z.Activate(); err != nil {
		return err
	}
	if z.AutoOff {
		id := z.ID
		z.timers.Schedule(id, d, func() error { return z.set(false) })
	}
	return nil
}

func (z *Zone) IsActive() (bool, error) {
	return z.driver.Active(z.GPIOPin())
}

// Status reads the live pin level and any pending auto-off.
func (z *Zone) Status() (model.ZoneStatus, error) {
	active, err := z.IsActive()
	if err != nil {
		return model.ZoneStatus{}, err
	}
	st := model.ZoneStatus{Zone: z.Zone, Active: active}
	if deadline, ok := z.timers.Pending(z.ID); ok {
		st.PendingAutoOff = true
		st.AutoOffAt = deadline
	}
	return st, nil
}
