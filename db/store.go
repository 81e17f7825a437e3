package db

import (
	"context"
	"database/sql"

	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
)

// Store adapts the package functions to zone.Store.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListZones(ctx context.Context) ([]model.Zone, error) {
	return GetAllZones(ctx, s.db)
}

func (s *Store) GetZone(ctx context.Context, id int64) (model.Zone, error) {
	return GetZoneByID(ctx, s.db, id)
}

func (s *Store) CreateZone(ctx context.Context, z model.Zone) (model.Zone, error) {
	return CreateZone(ctx, s.db, z)
}

func (s *Store) UpdateZone(ctx context.Context, z model.Zone) error {
	return UpdateZone(ctx, s.db, z)
}

func (s *Store) DeleteZone(ctx context.Context, id int64) error {
	return DeleteZone(ctx, s.db, id)
}

func (s *Store) ReorderZones(ctx context.Context, order []int) error {
	return ReorderZones(ctx, s.db, order)
}

func (s *Store) SystemEnabled(ctx context.Context) (bool, error) {
	return GetSystemEnabled(ctx, s.db)
}

func (s *Store) SetSystemEnabled(ctx context.Context, enabled bool) error {
	return SetSystemEnabled(ctx, s.db, enabled)
}
