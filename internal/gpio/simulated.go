package gpio

import (
	"sync"

	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
)

// Transition records one Set call against a Simulated driver.
type Transition struct {
	Pin    int
	Active bool
}

// Simulated keeps pin levels in memory. It backs safe mode and tests.
// Unset pins read as inactive.
type Simulated struct {
	mu     sync.Mutex
	levels map[int]bool
	log    []Transition
	fail   map[int]error
}

func NewSimulated() *Simulated {
	return &Simulated{
		levels: make(map[int]bool),
		fail:   make(map[int]error),
	}
}

func (s *Simulated) Set(pin model.GPIOPin, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[pin.Number]; err != nil {
		return err
	}
	s.levels[pin.Number] = Level(pin, active)
	s.log = append(s.log, Transition{Pin: pin.Number, Active: active})
	return nil
}

func (s *Simulated) Active(pin model.GPIOPin) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[pin.Number]; err != nil {
		return false, err
	}
	level, ok := s.levels[pin.Number]
	if !ok {
		return false, nil
	}
	return pin.ActiveHigh == level, nil
}

// FailPin makes every subsequent operation on pin return err. A nil err clears it.
func (s *Simulated) FailPin(pin int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, pin)
		return
	}
	s.fail[pin] = err
}

// Transitions returns a copy of every Set call so far.
func (s *Simulated) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transition, len(s.log))
	copy(out, s.log)
	return out
}

// ActivePins returns the pins currently in the active state.
func (s *Simulated) ActivePins(activeHigh bool) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pins []int
	for pin, level := range s.levels {
		if level == activeHigh {
			pins = append(pins, pin)
		}
	}
	return pins
}
