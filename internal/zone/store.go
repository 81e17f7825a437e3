package zone

import (
	"context"

	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
)

// Store persists zone definitions and the system enable flag.
//
// Implementations wrap storage failures in ErrPersistence and report
// missing zones with ErrNotFound.
type Store interface {
	ListZones(ctx context.Context) ([]model.Zone, error)
	GetZone(ctx context.Context, id int64) (model.Zone, error)
	CreateZone(ctx context.Context, z model.Zone) (model.Zone, error)
	UpdateZone(ctx context.Context, z model.Zone) error
	DeleteZone(ctx context.Context, id int64) error

	// ReorderZones assigns order[i] as the system order of the i-th zone
	// in current system order. It fails with ErrLengthMismatch when
	// len(order) differs from the zone count and changes nothing.
	ReorderZones(ctx context.Context, order []int) error

	SystemEnabled(ctx context.Context) (bool, error)
	SetSystemEnabled(ctx context.Context, enabled bool) error
}

// Observer is notified after every successful pin transition.
type Observer interface {
	ZoneChanged(z model.Zone, active bool)
}

type nopObserver struct{}

func (nopObserver) ZoneChanged(model.Zone, bool) {}
