// Package store reads asset evidence from a SQL metadata table shaped like
// the lakehouse ASSETS table. Three backends are supported: a local SQLite
// file, a versioned Dolt repository, and Postgres.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/dolthub/driver"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mdlh/mdq/internal/logging"
)

// DefaultTable is the asset table name used when none is configured.
const DefaultTable = "ASSETS"

// doltDatabase is the database created inside a Dolt repository.
const doltDatabase = "mdlh"

// ErrUnsupportedBackend is returned by Open for an unknown backend name.
var ErrUnsupportedBackend = errors.New("unsupported evidence backend")

// dialect captures the SQL differences between backends.
type dialect struct {
	driver     string
	keyType    string
	numberType string
	backtick   bool
	numbered   bool
}

var dialects = map[string]dialect{
	"sqlite":   {driver: "sqlite", keyType: "TEXT", numberType: "REAL"},
	"dolt":     {driver: "dolt", keyType: "VARCHAR(255)", numberType: "DOUBLE", backtick: true},
	"postgres": {driver: "pgx", keyType: "TEXT", numberType: "DOUBLE PRECISION", numbered: true},
}

func (d dialect) quote(ident string) string {
	if d.backtick {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// placeholder returns the bind marker for the n-th (1-based) argument.
func (d dialect) placeholder(n int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Store reads and writes evidence rows in one asset table.
type Store struct {
	db      *sql.DB
	backend string
	dialect dialect
	table   string
	logger  *slog.Logger
}

// Open connects to the evidence table. For sqlite dsn is a database file,
// for dolt a repository directory (created if missing), for postgres a
// connection string.
func Open(backend, dsn, table string) (*Store, error) {
	d, ok := dialects[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}
	if dsn == "" {
		return nil, fmt.Errorf("open %s store: empty dsn", backend)
	}
	if table == "" {
		table = DefaultTable
	}

	var (
		db  *sql.DB
		err error
	)
	switch backend {
	case "sqlite":
		db, err = openSQLite(dsn)
	case "dolt":
		db, err = openDolt(dsn)
	default:
		db, err = sql.Open(d.driver, dsn)
	}
	if err != nil {
		return nil, err
	}

	return &Store{
		db:      db,
		backend: backend,
		dialect: d,
		table:   table,
		logger:  logging.New("store"),
	}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return db, nil
}

func openDolt(dir string) (*sql.DB, error) {
	// Create the Dolt repo directory if needed
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create dolt directory: %w", err)
	}

	// First, connect without specifying database to create it if needed
	initDSN := fmt.Sprintf("file://%s?commitname=mdq&commitemail=mdq@local", dir)
	initDB, err := sql.Open("dolt", initDSN)
	if err != nil {
		return nil, fmt.Errorf("open dolt for init: %w", err)
	}
	if _, err := initDB.Exec("CREATE DATABASE IF NOT EXISTS " + doltDatabase); err != nil {
		initDB.Close()
		return nil, fmt.Errorf("create database: %w", err)
	}
	initDB.Close()

	dsn := fmt.Sprintf("file://%s?commitname=mdq&commitemail=mdq@local&database=%s", dir, doltDatabase)
	db, err := sql.Open("dolt", dsn)
	if err != nil {
		return nil, fmt.Errorf("open dolt db: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for advanced operations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Backend returns the backend name the store was opened with.
func (s *Store) Backend() string {
	return s.backend
}

// Table returns the asset table name.
func (s *Store) Table() string {
	return s.table
}
