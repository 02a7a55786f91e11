package sqlite

import (
	"embed"

	"github.com/taskscheduler/core/internal/platform/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the schedule store's schema to the SQLite database at dbPath.
// Safe to call repeatedly.
func Migrate(dbPath string) error {
	return sqlite.ApplyMigrationsFromFS(dbPath, migrationsFS, "migrations")
}
