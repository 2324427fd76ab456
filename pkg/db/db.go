package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	// Enforce single connection to avoid SQLITE_BUSY errors during concurrent writes
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS poi (
			id TEXT PRIMARY KEY,
			code TEXT,
			type TEXT,
			name TEXT,
			lat REAL,
			lon REAL,
			alt REAL,
			tags TEXT,
			active BOOLEAN DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS content (
			id TEXT PRIMARY KEY,
			poi_id TEXT NOT NULL,
			language TEXT,
			type TEXT,
			title TEXT,
			description TEXT,
			media_url TEXT,
			duration_ms INTEGER DEFAULT 0,
			active BOOLEAN DEFAULT 1,
			metadata TEXT,
			FOREIGN KEY (poi_id) REFERENCES poi(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_content_poi ON content(poi_id)`,
		`CREATE TABLE IF NOT EXISTS visit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			visitor_id TEXT NOT NULL,
			poi_id TEXT NOT NULL,
			visited_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			duration_sec INTEGER DEFAULT 0,
			content_played BOOLEAN DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_visit_log_visitor ON visit_log(visitor_id, id)`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("migration query failed: %w", err)
		}
	}
	return nil
}
