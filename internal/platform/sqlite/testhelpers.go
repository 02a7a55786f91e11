package sqlite

import (
	"context"
	"database/sql"
	"testing"
)

// TestDB wraps a test SQLite database with convenience helpers.
type TestDB struct {
	DB       *sql.DB
	Path     string // backing file path, empty for in-memory
	TxRunner *TxRunner
}

// NewTestDBInMemory creates an in-memory SQLite database for a test. It is
// closed automatically via t.Cleanup.
func NewTestDBInMemory(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()
	db, err := NewInMemoryDB(ctx)
	if err != nil {
		t.Fatalf("Failed to create in-memory test DB: %v", err)
	}

	testDB := &TestDB{
		DB:       db,
		Path:     ":memory:",
		TxRunner: NewTxRunner(db),
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return testDB
}

// NewTestDBFile creates a file-backed SQLite database for a test. The file
// is removed automatically via t.Cleanup.
func NewTestDBFile(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()
	db, path, err := NewTestDB(ctx)
	if err != nil {
		t.Fatalf("Failed to create file test DB: %v", err)
	}

	testDB := &TestDB{
		DB:       db,
		Path:     path,
		TxRunner: NewTxRunner(db),
	}

	t.Cleanup(func() {
		_ = CleanupTestDB(db, path)
	})

	return testDB
}

// ApplyTestMigrations applies migrations to the test database, for
// repository integration tests.
func (tdb *TestDB) ApplyTestMigrations(t *testing.T, migrationsPath string) {
	t.Helper()

	if err := ApplyMigrations(tdb.Path, migrationsPath); err != nil {
		t.Fatalf("Failed to apply test migrations: %v", err)
	}
}

// Exec runs a statement and fails the test on error.
func (tdb *TestDB) Exec(t *testing.T, query string, args ...any) sql.Result {
	t.Helper()

	result, err := tdb.DB.ExecContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("Failed to execute query: %v", err)
	}
	return result
}

// Query runs a query and fails the test on error.
func (tdb *TestDB) Query(t *testing.T, query string, args ...any) *sql.Rows {
	t.Helper()

	rows, err := tdb.DB.QueryContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("Failed to execute query: %v", err)
	}
	return rows
}

// QueryRow runs a query expected to return a single row.
func (tdb *TestDB) QueryRow(t *testing.T, query string, args ...any) *sql.Row {
	t.Helper()
	return tdb.DB.QueryRowContext(context.Background(), query, args...)
}

// TruncateTable deletes all rows from tableName.
func (tdb *TestDB) TruncateTable(t *testing.T, tableName string) {
	t.Helper()
	tdb.Exec(t, "DELETE FROM "+tableName)
}

// TruncateAllTables deletes all rows from every non-system, non-migration
// table in the database.
func (tdb *TestDB) TruncateAllTables(t *testing.T) {
	t.Helper()

	rows := tdb.Query(t, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' AND name != 'schema_migrations'")
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			t.Fatalf("Failed to scan table name: %v", err)
		}
		tables = append(tables, tableName)
	}

	for _, table := range tables {
		tdb.TruncateTable(t, table)
	}
}

// WithTx runs fn in a transaction, failing the test if it returns an error.
func (tdb *TestDB) WithTx(t *testing.T, fn func(ctx context.Context) error) {
	t.Helper()

	ctx := context.Background()
	err := tdb.TxRunner.WithinTx(ctx, fn)
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
}

// MustSeedData executes each query, failing the test on the first error.
func (tdb *TestDB) MustSeedData(t *testing.T, queries ...string) {
	t.Helper()

	for _, query := range queries {
		tdb.Exec(t, query)
	}
}

// CountRows returns the row count for tableName.
func (tdb *TestDB) CountRows(t *testing.T, tableName string) int {
	t.Helper()

	var count int
	row := tdb.QueryRow(t, "SELECT COUNT(*) FROM "+tableName)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("Failed to count rows in table %s: %v", tableName, err)
	}
	return count
}

// TableExists reports whether tableName exists in the database.
func (tdb *TestDB) TableExists(t *testing.T, tableName string) bool {
	t.Helper()

	var count int
	row := tdb.QueryRow(t, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", tableName)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("Failed to check table existence: %v", err)
	}
	return count > 0
}
