package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const (
	defaultBusyTimeout = 5 * time.Second
	connectionTimeout  = 5 * time.Second
	dirPermissions     = 0750

	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"
)

const schema = `
CREATE TABLE IF NOT EXISTS zones (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT    NOT NULL,
	gpio         INTEGER NOT NULL UNIQUE,
	run_seconds  INTEGER NOT NULL CHECK (run_seconds > 0),
	enabled      BOOLEAN NOT NULL DEFAULT TRUE,
	auto_off     BOOLEAN NOT NULL DEFAULT TRUE,
	system_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS system (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	enabled BOOLEAN NOT NULL DEFAULT TRUE
);

INSERT OR IGNORE INTO system (id, enabled) VALUES (1, TRUE);
`

// Open opens the SQLite database at path, creating its directory when needed,
// and applies the schema. SQLite allows one writer, so the pool is capped at
// a single connection; this also keeps ":memory:" databases coherent.
func Open(path string, busyTimeout time.Duration) (*sql.DB, error) {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", path, busyTimeout.Milliseconds())
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if err := ApplyMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("database opened")
	return conn, nil
}

// OpenMemory opens a migrated in-memory database.
func OpenMemory() (*sql.DB, error) {
	return Open(MemoryPath, 0)
}

func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
