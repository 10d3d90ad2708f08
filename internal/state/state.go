// Package state persists session data between runs: the directory each pane
// last showed and the destinations recently used by copy and move, so the
// next launch picks up where the previous one ended.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the state database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL lets a second instance read while this one writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	db := &DB{conn: conn, path: dbPath}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1},
	}

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := db.conn.Exec(m.sql); err != nil {
				return fmt.Errorf("migration v%d: %w", m.version, err)
			}
			if _, err := db.conn.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
				return fmt.Errorf("recording migration v%d: %w", m.version, err)
			}
		}
	}

	return nil
}

const migrationV1 = `
	CREATE TABLE IF NOT EXISTS app_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS recent_destinations (
		path TEXT PRIMARY KEY,
		used_at TIMESTAMP NOT NULL
	);
`

// Set stores a key/value pair, replacing any previous value.
func (db *DB) Set(key, value string) error {
	_, err := db.conn.Exec(`
		INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Get returns the value for key, or fallback when the key is absent.
func (db *DB) Get(key, fallback string) (string, error) {
	var value string
	err := db.conn.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("getting %s: %w", key, err)
	}
	return value, nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (db *DB) Delete(key string) error {
	_, err := db.conn.Exec("DELETE FROM app_state WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Pane state keys.
const (
	KeyLeftDir  = "pane.left.dir"
	KeyRightDir = "pane.right.dir"
	KeyActive   = "pane.active"
)

// TouchDestination records that a copy or move targeted path right now.
func (db *DB) TouchDestination(path string) error {
	_, err := db.conn.Exec(`
		INSERT INTO recent_destinations (path, used_at) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET used_at = excluded.used_at
	`, path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("touching destination %s: %w", path, err)
	}
	return nil
}

// RecentDestinations returns up to limit destination paths, most recent first.
func (db *DB) RecentDestinations(limit int) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT path FROM recent_destinations ORDER BY used_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing destinations: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// PruneDestinations drops destinations not used since the cutoff.
func (db *DB) PruneDestinations(olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := db.conn.Exec("DELETE FROM recent_destinations WHERE used_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("pruning destinations: %w", err)
	}
	return nil
}
