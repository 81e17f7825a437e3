package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
)

const zoneColumns = `id, name, gpio, run_seconds, enabled, auto_off, system_order`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanZone(row rowScanner) (model.Zone, error) {
	var z model.Zone
	var seconds int64
	if err := row.Scan(&z.ID, &z.Name, &z.Pin, &seconds, &z.Enabled, &z.AutoOff, &z.SystemOrder); err != nil {
		return model.Zone{}, err
	}
	z.RunDuration = time.Duration(seconds) * time.Second
	return z, nil
}

// GetAllZones returns every zone ordered by system order, then id.
func GetAllZones(ctx context.Context, db *sql.DB) ([]model.Zone, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+zoneColumns+` FROM zones ORDER BY system_order, id`)
	if err != nil {
		return nil, fmt.Errorf("query zones: %w: %w", zone.ErrPersistence, err)
	}
	defer rows.Close()

	zones := []model.Zone{}
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("scan zone: %w: %w", zone.ErrPersistence, err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate zones: %w: %w", zone.ErrPersistence, err)
	}
	return zones, nil
}

// GetZoneByID retrieves a specific zone by its ID.
func GetZoneByID(ctx context.Context, db *sql.DB, id int64) (model.Zone, error) {
	z, err := scanZone(db.QueryRowContext(ctx, `SELECT `+zoneColumns+` FROM zones WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Zone{}, fmt.Errorf("%w: id %d", zone.ErrNotFound, id)
	}
	if err != nil {
		return model.Zone{}, fmt.Errorf("get zone %d: %w: %w", id, zone.ErrPersistence, err)
	}
	return z, nil
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CountZones returns the number of stored zones, inside or outside a transaction.
func CountZones(ctx context.Context, db rowQuerier) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM zones`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count zones: %w: %w", zone.ErrPersistence, err)
	}
	return n, nil
}

// GetSystemEnabled reads the global enable flag.
func GetSystemEnabled(ctx context.Context, db *sql.DB) (bool, error) {
	var enabled bool
	if err := db.QueryRowContext(ctx, `SELECT enabled FROM system WHERE id = 1`).Scan(&enabled); err != nil {
		return false, fmt.Errorf("get system enabled: %w: %w", zone.ErrPersistence, err)
	}
	return enabled, nil
}
