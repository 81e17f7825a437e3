package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
)

// StartTransaction starts a new database transaction.
func StartTransaction(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w: %w", zone.ErrPersistence, err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w: %w", zone.ErrPersistence, err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Warn().Err(err).Msg("rollback failed")
	}
}

// writeError maps driver errors onto the zone error taxonomy. A unique
// constraint on gpio means the definition collides with another zone.
func writeError(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%s: %w: gpio already assigned to another zone", op, zone.ErrInvalidZone)
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%s: %w: run duration must be positive", op, zone.ErrInvalidZone)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, zone.ErrPersistence, err)
}

func runSeconds(z model.Zone) int64 {
	return int64(z.RunDuration.Seconds())
}

func insertZone(ctx context.Context, tx *sql.Tx, z model.Zone) (model.Zone, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO zones (name, gpio, run_seconds, enabled, auto_off, system_order) VALUES (?, ?, ?, ?, ?, ?)`,
		z.Name, z.Pin, runSeconds(z), z.Enabled, z.AutoOff, z.SystemOrder)
	if err != nil {
		return model.Zone{}, writeError("insert zone", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Zone{}, fmt.Errorf("insert zone id: %w: %w", zone.ErrPersistence, err)
	}
	z.ID = id
	return z, nil
}

func nextSystemOrder(ctx context.Context, tx *sql.Tx) (int, error) {
	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(system_order), -1) + 1 FROM zones`).Scan(&next); err != nil {
		return 0, fmt.Errorf("next system order: %w: %w", zone.ErrPersistence, err)
	}
	return next, nil
}

// CreateZone inserts z at the end of the system order and returns it with
// its assigned id and order.
func CreateZone(ctx context.Context, db *sql.DB, z model.Zone) (model.Zone, error) {
	tx, err := StartTransaction(ctx, db)
	if err != nil {
		return model.Zone{}, err
	}
	defer RollbackTransaction(tx)

	z.SystemOrder, err = nextSystemOrder(ctx, tx)
	if err != nil {
		return model.Zone{}, err
	}
	created, err := insertZone(ctx, tx, z)
	if err != nil {
		return model.Zone{}, err
	}
	if err := CommitTransaction(tx); err != nil {
		return model.Zone{}, err
	}
	return created, nil
}

func UpdateZone(ctx context.Context, db *sql.DB, z model.Zone) error {
	res, err := db.ExecContext(ctx,
		`UPDATE zones SET name = ?, gpio = ?, run_seconds = ?, enabled = ?, auto_off = ?, system_order = ? WHERE id = ?`,
		z.Name, z.Pin, runSeconds(z), z.Enabled, z.AutoOff, z.SystemOrder, z.ID)
	if err != nil {
		return writeError(fmt.Sprintf("update zone %d", z.ID), err)
	}
	return requireRow(res, z.ID)
}

func DeleteZone(ctx context.Context, db *sql.DB, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM zones WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete zone %d: %w: %w", id, zone.ErrPersistence, err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w: %w", zone.ErrPersistence, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", zone.ErrNotFound, id)
	}
	return nil
}

// ReorderZones assigns order[i] to the i-th zone in current system order.
// The length check and every update run in one transaction.
func ReorderZones(ctx context.Context, db *sql.DB, order []int) error {
	tx, err := StartTransaction(ctx, db)
	if err != nil {
		return err
	}
	defer RollbackTransaction(tx)

	rows, err := tx.QueryContext(ctx, `SELECT id FROM zones ORDER BY system_order, id`)
	if err != nil {
		return fmt.Errorf("list zone ids: %w: %w", zone.ErrPersistence, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan zone id: %w: %w", zone.ErrPersistence, err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate zone ids: %w: %w", zone.ErrPersistence, err)
	}

	if len(order) != len(ids) {
		return fmt.Errorf("%w: got %d entries for %d zones", zone.ErrLengthMismatch, len(order), len(ids))
	}

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE zones SET system_order = ? WHERE id = ?`, order[i], id); err != nil {
			return fmt.Errorf("set order for zone %d: %w: %w", id, zone.ErrPersistence, err)
		}
	}
	return CommitTransaction(tx)
}

func SetSystemEnabled(ctx context.Context, db *sql.DB, enabled bool) error {
	if _, err := db.ExecContext(ctx, `UPDATE system SET enabled = ? WHERE id = 1`, enabled); err != nil {
		return fmt.Errorf("update system enabled: %w: %w", zone.ErrPersistence, err)
	}
	return nil
}

// SeedZones inserts zones into an empty table in the given order. It does
// nothing and returns 0 when zones already exist.
func SeedZones(ctx context.Context, db *sql.DB, zones []model.Zone) (int, error) {
	tx, err := StartTransaction(ctx, db)
	if err != nil {
		return 0, err
	}
	defer RollbackTransaction(tx)

	existing, err := CountZones(ctx, tx)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		log.Info().Int("existing", existing).Msg("zones already present, skipping seed")
		return 0, nil
	}

	for i, z := range zones {
		z.SystemOrder = i
		if _, err := insertZone(ctx, tx, z); err != nil {
			return 0, fmt.Errorf("seed zone %q: %w", z.Name, err)
		}
	}
	if err := CommitTransaction(tx); err != nil {
		return 0, err
	}
	log.Info().Int("zones", len(zones)).Msg("database seeded from config")
	return len(zones), nil
}
