package zone

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/internal/gpio"
	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
)

// Registry is the single entry point for zone transitions. It re-reads zone
// definitions from the store on every call and serialises every
// sweep-then-activate sequence behind one lock, so at most one valve is open
// once any operation returns.
type Registry struct {
	store      Store
	driver     gpio.Driver
	activeHigh bool
	timers     *TimerManager
	clock      Clock
	observer   Observer

	// mu is the manifold lock.
	mu sync.Mutex
}

type Option func(*Registry)

func WithClock(c Clock) Option {
	return func(r *Registry) { r.clock = c }
}

func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

func NewRegistry(store Store, driver gpio.Driver, activeHigh bool, opts ...Option) *Registry {
	r := &Registry{
		store:      store,
		driver:     driver,
		activeHigh: activeHigh,
		clock:      RealClock(),
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.timers = NewTimerManager(r.clock)
	return r
}

func (r *Registry) Clock() Clock {
	return r.clock
}

func (r *Registry) Timers() *TimerManager {
	return r.timers
}

func (r *Registry) bind(m model.Zone) *Zone {
	return &Zone{
		Zone:       m,
		driver:     r.driver,
		activeHigh: r.activeHigh,
		timers:     r.timers,
		clock:      r.clock,
		observer:   r.observer,
	}
}

// Zones returns every zone sorted by system order, then id.
func (r *Registry) Zones(ctx context.Context) ([]*Zone, error) {
	defs, err := r.store.ListZones(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].SystemOrder != defs[j].SystemOrder {
			return defs[i].SystemOrder < defs[j].SystemOrder
		}
		return defs[i].ID < defs[j].ID
	})
	zones := make([]*Zone, len(defs))
	for i, d := range defs {
		zones[i] = r.bind(d)
	}
	return zones, nil
}

func (r *Registry) Zone(ctx context.Context, id int64) (*Zone, error) {
	def, err := r.store.GetZone(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.bind(def), nil
}

// ZoneByOrder resolves a zone by its system order value.
func (r *Registry) ZoneByOrder(ctx context.Context, order int) (*Zone, error) {
	zones, err := r.Zones(ctx)
	if err != nil {
		return nil, err
	}
	for _, z := range zones {
		if z.SystemOrder == order {
			return z, nil
		}
	}
	return nil, fmt.Errorf("%w: no zone at system order %d", ErrNotFound, order)
}

func (r *Registry) Status(ctx context.Context, id int64) (model.ZoneStatus, error) {
	z, err := r.Zone(ctx, id)
	if err != nil {
		return model.ZoneStatus{}, err
	}
	return z.Status()
}

func (r *Registry) Statuses(ctx context.Context) ([]model.ZoneStatus, error) {
	zones, err := r.Zones(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.ZoneStatus, 0, len(zones))
	for _, z := range zones {
		st, err := z.Status()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// sweep closes every zone. Callers hold mu. Every zone is attempted; the
// joined errors are returned.
func (r *Registry) sweep(zones []*Zone) error {
	var errs []error
	for _, z := range zones {
		if err := z.Deactivate(); err != nil {
			errs = append(errs, fmt.Errorf("deactivate zone %d: %w", z.ID, err))
		}
	}
	return errors.Join(errs...)
}

func find(zones []*Zone, id int64) (*Zone, error) {
	for _, z := range zones {
		if z.ID == id {
			return z, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// activateExclusive sweeps every zone and then opens the target. Callers hold mu.
func (r *Registry) activateExclusive(ctx context.Context, id int64, open func(*Zone) error) (*Zone, error) {
	zones, err := r.Zones(ctx)
	if err != nil {
		return nil, err
	}
	target, err := find(zones, id)
	if err != nil {
		return nil, err
	}
	if err := r.sweep(zones); err != nil {
		return nil, err
	}
	if err := open(target); err != nil {
		return nil, err
	}
	return target, nil
}

// Activate turns every other zone off and opens id unattended, scheduling
// its auto-off when the zone has AutoOff set.
func (r *Registry) Activate(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, err := r.activateExclusive(ctx, id, func(z *Zone) error { return z.RunUnattended(z.RunDuration) })
	if err != nil {
		return err
	}
	log.Info().Int64("zone_id", id).Str("zone", z.Name).Bool("auto_off", z.AutoOff).Msg("zone activated")
	return nil
}

// ActivateAndHold turns every other zone off and opens id with no auto-off.
// The valve stays open until something deactivates it.
func (r *Registry) ActivateAndHold(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, err := r.activateExclusive(ctx, id, func(z *Zone) error { return z.Activate() })
	if err != nil {
		return err
	}
	log.Info().Int64("zone_id", id).Str("zone", z.Name).Msg("zone activated and held")
	return nil
}

// RunFor is a blocking run of one zone: sweep and open under the lock, wait
// d without holding it, then close. The close happens even when ctx ends
// the wait, and ctx.Err() is returned in that case.
func (r *Registry) RunFor(ctx context.Context, id int64, d time.Duration) error {
	z, err := r.Zone(ctx, id)
	if err != nil {
		return err
	}
	opened := z
	openValve := func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		target, err := r.activateExclusive(ctx, id, func(t *Zone) error { return t.Activate() })
		if err != nil {
			return err
		}
		opened = target
		return nil
	}
	closeValve := func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.closeAfterRun(context.WithoutCancel(ctx), opened)
	}
	return z.run(ctx, d, openValve, closeValve)
}

// closeAfterRun closes the valve opened by RunFor. The zone is read again
// first; if it was deleted or moved to another pin during the wait, the pin
// may now belong to a different zone and is left alone. Callers hold mu.
func (r *Registry) closeAfterRun(ctx context.Context, ran *Zone) error {
	current, err := r.Zone(ctx, ran.ID)
	if errors.Is(err, ErrNotFound) {
		log.Warn().Int64("zone_id", ran.ID).Int("gpio", ran.Pin).Msg("zone deleted during run, leaving pin alone")
		return nil
	}
	if err != nil {
		return err
	}
	if current.Pin != ran.Pin {
		log.Warn().Int64("zone_id", ran.ID).Int("gpio", ran.Pin).Int("new_gpio", current.Pin).
			Msg("zone moved to another pin during run, leaving old pin alone")
		return nil
	}
	if err := current.Deactivate(); err != nil {
		return err
	}
	log.Info().Int64("zone_id", current.ID).Str("zone", current.Name).Msg("zone run finished")
	return nil
}

func (r *Registry) Deactivate(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, err := r.Zone(ctx, id)
	if err != nil {
		return err
	}
	if err := z.Deactivate(); err != nil {
		return err
	}
	log.Info().Int64("zone_id", id).Str("zone", z.Name).Msg("zone deactivated")
	return nil
}

// AllOff closes every zone and cancels every pending auto-off.
func (r *Registry) AllOff(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	zones, err := r.Zones(ctx)
	if err != nil {
		return err
	}
	r.timers.StopAll()
	return r.sweep(zones)
}

// DurationFromMinutes converts a run time given in minutes by a control
// surface, rejecting values outside [1, model.MaxRunMinutes].
func DurationFromMinutes(minutes int) (time.Duration, error) {
	if minutes < 1 || minutes > model.MaxRunMinutes {
		return 0, fmt.Errorf("%w: time must be between 1 and %d minutes, got %d", ErrInvalidZone, model.MaxRunMinutes, minutes)
	}
	return model.MinutesToDuration(minutes), nil
}

func validate(z model.Zone) error {
	var problems []string
	if strings.TrimSpace(z.Name) == "" {
		problems = append(problems, "name is required")
	}
	if z.Pin < 0 {
		problems = append(problems, fmt.Sprintf("gpio %d is negative", z.Pin))
	}
	switch {
	case z.RunDuration < time.Second:
		problems = append(problems, "run duration must be at least one second")
	case z.RunDuration%time.Second != 0:
		problems = append(problems, "run duration must be a whole number of seconds")
	case z.RunDuration > model.MaxRunDuration:
		problems = append(problems, fmt.Sprintf("run duration must not exceed %d minutes", model.MaxRunMinutes))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidZone, strings.Join(problems, ", "))
	}
	return nil
}

func pinConflict(zones []*Zone, candidate model.Zone) error {
	for _, z := range zones {
		if z.ID != candidate.ID && z.Pin == candidate.Pin {
			return fmt.Errorf("%w: gpio %d already used by zone %d (%s)", ErrInvalidZone, candidate.Pin, z.ID, z.Name)
		}
	}
	return nil
}

// Create validates and stores a new zone. The store assigns the id and the
// next free system order.
func (r *Registry) Create(ctx context.Context, z model.Zone) (model.Zone, error) {
	if err := validate(z); err != nil {
		return model.Zone{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	zones, err := r.Zones(ctx)
	if err != nil {
		return model.Zone{}, err
	}
	if err := pinConflict(zones, z); err != nil {
		return model.Zone{}, err
	}
	created, err := r.store.CreateZone(ctx, z)
	if err != nil {
		return model.Zone{}, err
	}
	log.Info().Int64("zone_id", created.ID).Str("zone", created.Name).Int("gpio", created.Pin).Msg("zone created")
	return created, nil
}

// Update replaces a zone definition. Moving an open valve to a different
// pin is rejected with ErrZoneActive.
func (r *Registry) Update(ctx context.Context, z model.Zone) error {
	if err := validate(z); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	zones, err := r.Zones(ctx)
	if err != nil {
		return err
	}
	current, err := find(zones, z.ID)
	if err != nil {
		return err
	}
	if current.Pin != z.Pin {
		active, err := current.IsActive()
		if err != nil {
			return err
		}
		if active {
			return fmt.Errorf("%w: zone %d must be off before changing gpio", ErrZoneActive, z.ID)
		}
		if err := pinConflict(zones, z); err != nil {
			return err
		}
	}
	if err := r.store.UpdateZone(ctx, z); err != nil {
		return err
	}
	log.Info().Int64("zone_id", z.ID).Str("zone", z.Name).Msg("zone updated")
	return nil
}

// Delete closes the valve and removes the zone.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, err := r.Zone(ctx, id)
	if err != nil {
		return err
	}
	if err := z.Deactivate(); err != nil {
		return err
	}
	if err := r.store.DeleteZone(ctx, id); err != nil {
		return err
	}
	log.Info().Int64("zone_id", id).Str("zone", z.Name).Msg("zone deleted")
	return nil
}

// Reorder assigns order[i] to the i-th zone in current system order.
func (r *Registry) Reorder(ctx context.Context, order []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.ReorderZones(ctx, order); err != nil {
		return err
	}
	log.Info().Ints("order", order).Msg("zones reordered")
	return nil
}

func (r *Registry) SystemEnabled(ctx context.Context) (bool, error) {
	return r.store.SystemEnabled(ctx)
}

func (r *Registry) SetSystemEnabled(ctx context.Context, enabled bool) error {
	if err := r.store.SetSystemEnabled(ctx, enabled); err != nil {
		return err
	}
	log.Info().Bool("enabled", enabled).Msg("system enabled flag updated")
	return nil
}
