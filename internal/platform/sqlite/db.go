package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, no cgo
)

// TxLockMode selects the locking mode SQLite uses for new transactions.
type TxLockMode string

const (
	// TxLockDeferred defers locking until the first read/write (SQLite's default).
	TxLockDeferred TxLockMode = "DEFERRED"
	// TxLockImmediate grabs a RESERVED lock immediately, avoiding a late SQLITE_BUSY on write.
	TxLockImmediate TxLockMode = "IMMEDIATE"
	// TxLockExclusive grabs an EXCLUSIVE lock immediately.
	TxLockExclusive TxLockMode = "EXCLUSIVE"
)

// AccessMode selects how the database file is opened.
type AccessMode string

const (
	// AccessModeReadWrite opens for reading and writing (default).
	AccessModeReadWrite AccessMode = "rw"
	// AccessModeReadOnly opens for reading only.
	AccessModeReadOnly AccessMode = "ro"
	// AccessModeReadWriteCreate opens for reading and writing, creating the file if absent.
	AccessModeReadWriteCreate AccessMode = "rwc"
)

// DBOptions configures an SQLite connection.
type DBOptions struct {
	// ConnMaxLifetime is the maximum lifetime of a connection.
	ConnMaxLifetime time.Duration
	// ConnMaxIdleTime is the maximum idle time before a connection is closed.
	ConnMaxIdleTime time.Duration
	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int
	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int
	// PingTimeout bounds the initial ping performed when the database is opened.
	PingTimeout time.Duration
	// WALMode enables write-ahead logging for better concurrent throughput.
	WALMode bool
	// ForeignKeys enables foreign key constraint enforcement.
	ForeignKeys bool
	// BusyTimeout bounds how long a statement waits on SQLITE_BUSY.
	BusyTimeout time.Duration
	// TxLockMode is the locking mode used for new transactions.
	TxLockMode TxLockMode
	// EnableWriteQueue serializes write transactions through a single queue.
	EnableWriteQueue bool
	// WriteQueueSize is the write queue buffer size (default 100).
	WriteQueueSize int
	// AccessMode controls how the database file is opened.
	AccessMode AccessMode
}

// DefaultDBOptions returns defaults tuned for an embedded, single-writer
// workload such as the scheduler store's secondary backend.
func DefaultDBOptions() DBOptions {
	return DBOptions{
		ConnMaxLifetime:  time.Hour,
		ConnMaxIdleTime:  10 * time.Minute,
		MaxOpenConns:     4, // SQLite has one writer regardless
		MaxIdleConns:     1,
		PingTimeout:      5 * time.Second,
		WALMode:          true,
		ForeignKeys:      true,
		BusyTimeout:      5 * time.Second,
		TxLockMode:       TxLockDeferred,
		EnableWriteQueue: false,
		WriteQueueSize:   100,
		AccessMode:       AccessModeReadWrite,
	}
}

// NewDB opens an SQLite database at dbPath with default options.
func NewDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	return NewDBWithOptions(ctx, dbPath, DefaultDBOptions())
}

// NewReadOnlyDB opens dbPath in read-only mode.
func NewReadOnlyDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	opts := DefaultDBOptions()
	opts.AccessMode = AccessModeReadOnly
	opts.EnableWriteQueue = false
	return NewDBWithOptions(ctx, dbPath, opts)
}

// NewDBWithMode opens dbPath with the given access mode.
func NewDBWithMode(ctx context.Context, dbPath string, mode AccessMode) (*sql.DB, error) {
	opts := DefaultDBOptions()
	opts.AccessMode = mode
	if mode == AccessModeReadOnly {
		opts.EnableWriteQueue = false
	}
	return NewDBWithOptions(ctx, dbPath, opts)
}

// NewDBFromDSN opens SQLite using a caller-supplied DSN, for full control
// over connection parameters or compatibility with external tooling.
func NewDBFromDSN(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	opts := DefaultDBOptions()
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	// PRAGMA settings are not applied automatically for a caller-supplied
	// DSN. Use NewDBWithOptions if you need them.

	return db, nil
}

// NewDBWithOptions opens dbPath with the given options, applying PRAGMA
// settings once the connection is established.
func NewDBWithOptions(ctx context.Context, dbPath string, opts DBOptions) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	dsn := buildDSN(dbPath, opts)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := applyPragmaSettings(ctx, db, opts); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply PRAGMA settings: %w", err)
	}

	return db, nil
}

// buildDSN builds a minimal DSN; most tuning is applied via PRAGMA once the
// connection is open.
func buildDSN(dbPath string, opts DBOptions) string {
	params := []string{}

	if opts.AccessMode != "" && opts.AccessMode != AccessModeReadWrite {
		params = append(params, fmt.Sprintf("mode=%s", opts.AccessMode))
	}

	if opts.BusyTimeout > 0 {
		timeoutMs := int(opts.BusyTimeout.Milliseconds())
		params = append(params, fmt.Sprintf("_busy_timeout=%d", timeoutMs))
	}

	if len(params) > 0 {
		return dbPath + "?" + strings.Join(params, "&")
	}

	return dbPath
}

// NewInMemoryDB opens an in-memory SQLite database, pinned to a single
// connection so the schema isn't lost across pooled connections.
func NewInMemoryDB(ctx context.Context) (*sql.DB, error) {
	opts := DefaultDBOptions()
	opts.WALMode = false
	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1
	opts.EnableWriteQueue = false

	return NewDBWithOptions(ctx, ":memory:", opts)
}

// NewTestDB creates a temporary file-backed SQLite database for tests.
func NewTestDB(ctx context.Context) (*sql.DB, string, error) {
	tmpFile, err := os.CreateTemp("", "test_db_*.sqlite")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := NewDB(ctx, tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, "", err
	}

	return db, tmpPath, nil
}

// CleanupTestDB closes db and removes its backing file, if any.
func CleanupTestDB(db *sql.DB, dbPath string) error {
	if db != nil {
		_ = db.Close()
	}
	if dbPath != "" && dbPath != ":memory:" {
		return os.Remove(dbPath)
	}
	return nil
}

// applyPragmaSettings applies PRAGMA statements to an open connection,
// which is more reliable than embedding them in the DSN across drivers.
func applyPragmaSettings(ctx context.Context, db *sql.DB, opts DBOptions) error {
	pragmas := make([]string, 0, 5)

	if opts.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	}

	if opts.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	pragmas = append(pragmas, "PRAGMA synchronous = NORMAL")

	if opts.BusyTimeout > 0 {
		timeoutMs := int(opts.BusyTimeout.Milliseconds())
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", timeoutMs))
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}
