package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the database connection and provides initialization
type DB struct {
	*sql.DB
}

// NewDB creates and initializes a new database connection
func NewDB(dbPath string) (*DB, error) {
	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open SQLite database
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)

	db := &DB{DB: sqlDB}

	// Initialize schema
	if err := db.initSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the database tables and indexes
func (db *DB) initSchema() error {
	schema := `
-- Probe and usage outcome history for pool observability
CREATE TABLE IF NOT EXISTS probe_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    endpoint TEXT NOT NULL,
    live BOOLEAN NOT NULL,
    cause TEXT,                  -- failure class when not live
    latency_ms INTEGER,
    source TEXT NOT NULL,        -- 'prober' or 'caller'
    recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Index for per-endpoint history lookups
CREATE INDEX IF NOT EXISTS idx_probe_history_endpoint ON probe_history(endpoint);

-- Index for age-based cleanup
CREATE INDEX IF NOT EXISTS idx_probe_history_recorded ON probe_history(recorded_at);

-- Blacklist audit trail (mirrors the durable blacklist file)
CREATE TABLE IF NOT EXISTS blacklist_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    endpoint TEXT NOT NULL,
    reason TEXT NOT NULL,
    recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_blacklist_events_endpoint ON blacklist_events(endpoint);`

	_, err := db.Exec(schema)
	return err
}
