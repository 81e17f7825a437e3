package zone

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type pendingOff struct {
	timer    Timer
	deadline time.Time
}

// TimerManager tracks at most one deferred deactivation per zone.
//
// A firing timer only runs its callback while it is still the registered
// entry for that zone; Cancel and Schedule take the same lock, so a timer
// that was cancelled or superseded can never switch a zone off.
type TimerManager struct {
	mu      sync.Mutex
	clock   Clock
	pending map[int64]*pendingOff
}

func NewTimerManager(clock Clock) *TimerManager {
	if clock == nil {
		clock = RealClock()
	}
	return &TimerManager{
		clock:   clock,
		pending: make(map[int64]*pendingOff),
	}
}

// Schedule arms a timer that calls off after d, replacing any timer already
// pending for id. off runs on the timer goroutine and must not call back
// into the TimerManager.
func (m *TimerManager) Schedule(id int64, d time.Duration, off func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.pending[id]; ok {
		prev.timer.Stop()
	}
	entry := &pendingOff{deadline: m.clock.Now().Add(d)}
	entry.timer = m.clock.AfterFunc(d, func() { m.fire(id, entry, off) })
	m.pending[id] = entry

	log.Debug().Int64("zone_id", id).Time("deadline", entry.deadline).Msg("auto-off scheduled")
}

func (m *TimerManager) fire(id int64, entry *pendingOff, off func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending[id] != entry {
		return
	}
	delete(m.pending, id)

	if err := off(); err != nil {
		log.Error().Err(err).Int64("zone_id", id).Msg("auto-off failed")
		return
	}
	log.Info().Int64("zone_id", id).Msg("auto-off fired")
}

// Cancel stops the pending timer for id. It reports whether one was pending.
func (m *TimerManager) Cancel(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.pending[id]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(m.pending, id)
	return true
}

// Pending returns the deadline of the timer armed for id, if any.
func (m *TimerManager) Pending(id int64) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.pending[id]
	if !ok {
		return time.Time{}, false
	}
	return entry.deadline, true
}

// StopAll cancels every pending timer without touching any pin.
func (m *TimerManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, entry := range m.pending {
		entry.timer.Stop()
		delete(m.pending, id)
	}
}
