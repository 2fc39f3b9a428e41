// Package store persists chat summaries in SQLite, with an in-memory
// variant for tests and throwaway runs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/soyeahso/advisor/internal/logging"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// connection settings applied right after open.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// DB is an open summary database with its schema brought up to date.
type DB struct {
	sql *sql.DB
	log *logging.Logger
}

// Open opens the database file at path, creating its directory when
// needed, and applies any pending migrations.
func Open(path string, log *logging.Logger) (*DB, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("store: creating %s: %w", filepath.Dir(path), err)
		}
	}

	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	if path == MemoryPath {
		// A second connection would see an empty database.
		handle.SetMaxOpenConns(1)
	}

	db := &DB{sql: handle, log: log.Sub("store")}
	if err := db.init(); err != nil {
		handle.Close()
		return nil, err
	}

	version, _ := db.SchemaVersion()
	db.log.Info().Str("path", path).Int("schema", version).Msg("summary database ready")
	return db, nil
}

func (db *DB) init() error {
	for _, p := range pragmas {
		if _, err := db.sql.Exec(p); err != nil {
			return fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if err := db.migrate(); err != nil {
		return fmt.Errorf("store: migrating: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	db.log.Debug().Msg("closing summary database")
	return db.sql.Close()
}

// SQL exposes the handle for ad hoc queries.
func (db *DB) SQL() *sql.DB { return db.sql }

// SchemaVersion reports the highest applied migration, or 0 on a fresh
// database.
func (db *DB) SchemaVersion() (int, error) {
	var v sql.NullInt64
	err := db.sql.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// migrate applies every migration newer than those already recorded.
func (db *DB) migrate() error {
	const ledger = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`
	if _, err := db.sql.Exec(ledger); err != nil {
		return err
	}

	applied, err := db.appliedVersions()
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		db.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")
		if err := db.apply(m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (db *DB) appliedVersions() (map[int]bool, error) {
	rows, err := db.sql.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		seen[v] = true
	}
	return seen, rows.Err()
}

// apply runs m and records it in one transaction.
func (db *DB) apply(m migration) (err error) {
	tx, err := db.sql.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.Exec(m.SQL); err != nil {
		return err
	}
	if _, err = tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		return err
	}
	return tx.Commit()
}
