// Package storage wraps the embedded SQLite database that backs the
// memory core: row tables, the FTS5 lexical index, and the vector tables,
// all in one file so a crash leaves a single consistent WAL-mode database
// rather than several independently-failing stores.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/memoryengine/memoryengine/internal/logging"
)

var log = logging.GetLogger("storage")

// DB wraps a *sql.DB with the mutex discipline the single-writer SQLite
// connection needs: SQLite serializes writers internally, but mixing that
// with Go's own connection pool produces spurious "database is locked"
// errors unless the pool itself is capped at one connection, mirrored here
// with an explicit mutex so call sites read as critical sections.
type DB struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open creates (if needed) the parent directory and opens the SQLite
// database at path in WAL mode with foreign keys enabled.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer connection avoids SQLITE_BUSY under WAL when several
	// goroutines attempt concurrent writes; reads still see consistent
	// snapshots via WAL.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: sqlDB, path: path}, nil
}

// InitSchema creates all row tables, the FTS5 virtual table and its sync
// triggers, and the vector tables, then records the schema version.
func (d *DB) InitSchema() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(CoreSchema); err != nil {
		return fmt.Errorf("failed to apply core schema: %w", err)
	}

	if _, err := tx.Exec(VectorSchema); err != nil {
		return fmt.Errorf("failed to apply vector schema: %w", err)
	}

	if _, err := tx.Exec(FTSSchema); err != nil {
		// FTS5 may be unavailable in a non-standard sqlite3 build; degrade
		// to row+vector only rather than fail store creation outright.
		log.Warn("FTS5 schema failed, fulltext recall will be unavailable", "error", err)
	}

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)`,
		SchemaVersion, time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Conn returns the underlying *sql.DB for packages (e.g. vector) that need
// direct access while still sharing the single connection pool.
func (d *DB) Conn() *sql.DB {
	return d.db
}

// Exec runs a statement under the write mutex.
func (d *DB) Exec(query string, args ...any) (sql.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Exec(query, args...)
}

// Query runs a query under the write mutex (SQLite allows concurrent
// readers, but the single-connection pool serializes everything anyway).
func (d *DB) Query(query string, args ...any) (*sql.Rows, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Query(query, args...)
}

// QueryRow runs a single-row query under the write mutex.
func (d *DB) QueryRow(query string, args ...any) *sql.Row {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.QueryRow(query, args...)
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. This is the primitive every multi-table write in
// the memory core (row + FTS + vector + junction) is built on, so that a
// failure at any step leaves no partial record (SPEC_FULL.md §4.2, §5).
func (d *DB) WithTx(fn func(tx *sql.Tx) error) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// TableExists reports whether a table with the given name exists.
func (d *DB) TableExists(name string) (bool, error) {
	var count int
	err := d.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Checkpoint forces a WAL checkpoint, useful before backing up the file.
func (d *DB) Checkpoint() error {
	_, err := d.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}

// Vacuum reclaims unused space.
func (d *DB) Vacuum() error {
	_, err := d.Exec(`VACUUM`)
	return err
}

// Stats summarizes row counts per table, for operational visibility.
type Stats struct {
	BankCount        int   `json:"bank_count"`
	MemoryUnitCount  int   `json:"memory_unit_count"`
	EntityCount      int   `json:"entity_count"`
	LinkCount        int   `json:"link_count"`
	MentalModelCount int   `json:"mental_model_count"`
	FileSizeBytes    int64 `json:"file_size_bytes"`
}

// GetStats aggregates table counts and the on-disk file size.
func (d *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		table string
		dest  *int
	}{
		{"banks", &stats.BankCount},
		{"memory_units", &stats.MemoryUnitCount},
		{"entities", &stats.EntityCount},
		{"memory_links", &stats.LinkCount},
		{"mental_models", &stats.MentalModelCount},
	}

	for _, c := range counts {
		if err := d.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table)).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	if d.path != ":memory:" {
		if info, err := os.Stat(d.path); err == nil {
			stats.FileSizeBytes = info.Size()
		}
	}

	return stats, nil
}
