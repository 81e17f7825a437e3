package zone

import (
	"errors"

	"github.com/thatsimonsguy/sprinkler-controller/internal/gpio"
)

// Errors returned by zone operations. Use errors.Is to check for them.
var (
	// ErrHardwareUnavailable is returned when a pin cannot be driven or read.
	ErrHardwareUnavailable = gpio.ErrUnavailable

	ErrNotFound       = errors.New("zone: not found")
	ErrLengthMismatch = errors.New("zone: order length does not match zone count")
	ErrPersistence    = errors.New("zone: persistence failure")

	// ErrInvalidZone is returned for definitions that fail validation.
	ErrInvalidZone = errors.New("zone: invalid definition")

	// ErrZoneActive is returned when a pin change is attempted on an open valve.
	ErrZoneActive = errors.New("zone: zone is active")
)
