package postgres

import (
	"embed"

	"github.com/taskscheduler/core/internal/platform/pg"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the schedule store's schema to the database at dsn.
// Safe to call repeatedly.
func Migrate(dsn string) (pg.MigrationInfo, error) {
	return pg.ApplyMigrationsFromFS(dsn, migrationsFS, "migrations")
}
