package gpio

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
	"github.com/thatsimonsguy/sprinkler-controller/internal/pinctrl"
)

// ErrUnavailable is returned when a GPIO line cannot be driven or read.
var ErrUnavailable = errors.New("gpio: hardware unavailable")

// Driver sets and reads the logical state of output pins. Implementations
// translate active/inactive into the electrical level using pin.ActiveHigh.
type Driver interface {
	Set(pin model.GPIOPin, active bool) error
	Active(pin model.GPIOPin) (bool, error)
}

// Level returns the electrical level that puts pin into the requested state.
func Level(pin model.GPIOPin, active bool) bool {
	return pin.ActiveHigh == active
}

// Pinctrl drives pins through the pinctrl utility. Lines keep their level
// after the process exits.
type Pinctrl struct {
	tool *pinctrl.Tool
}

func NewPinctrl(tool *pinctrl.Tool) *Pinctrl {
	if tool == nil {
		tool = pinctrl.New()
	}
	return &Pinctrl{tool: tool}
}

func (p *Pinctrl) Set(pin model.GPIOPin, active bool) error {
	if err := p.tool.DriveOutput(pin.Number, Level(pin, active)); err != nil {
		return fmt.Errorf("%w: set pin %d active=%v: %v", ErrUnavailable, pin.Number, active, err)
	}
	log.Debug().Int("pin", pin.Number).Bool("active", active).Msg("pin driven")
	return nil
}

func (p *Pinctrl) Active(pin model.GPIOPin) (bool, error) {
	level, err := p.tool.ReadLevel(pin.Number)
	if err != nil {
		return false, fmt.Errorf("%w: read pin %d: %v", ErrUnavailable, pin.Number, err)
	}
	return pin.ActiveHigh == level, nil
}
