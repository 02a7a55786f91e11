// Package sqlite provides infrastructure for the secondary, single-node
// SQLite store backend.
//
// Capabilities:
//   - database setup with tuned PRAGMA settings
//   - transaction management with savepoint support
//   - cross-platform migrations via golang-migrate
//   - write concurrency control (retries, queueing, lock modes)
//   - access modes (read-only, read-write-create)
//   - test helpers for repository-level tests
//
// # Quick start
//
//	ctx := context.Background()
//	db, err := sqlite.NewDB(ctx, "scheduler.db")
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
// # Transactions
//
//	runner := sqlite.NewTxRunner(db)
//	err = runner.WithinTx(ctx, func(ctx context.Context) error {
//		querier := runner.GetQuerier(ctx)
//		_, err := querier.ExecContext(ctx, "INSERT INTO task_schedules (id) VALUES (?)", id)
//		return err
//	})
//
// Savepoints for nested transactional steps:
//
//	err = runner.WithinTx(ctx, func(outerCtx context.Context) error {
//		return runner.WithinSavepoint(outerCtx, func(innerCtx context.Context) error {
//			return nil
//		})
//	})
//
// Separating reads from writes:
//
//	err = runner.WithinTxRead(ctx, func(ctx context.Context) error { ... })
//	err = runner.WithinTxWrite(ctx, func(ctx context.Context) error { ... })
//
// # Concurrency tuning
//
//	opts := sqlite.DefaultDBOptions()
//	opts.EnableWriteQueue = true
//	opts.TxLockMode = sqlite.TxLockImmediate
//	db, err := sqlite.NewDBWithOptions(ctx, "scheduler.db", opts)
//
// # Access modes
//
//	db, err := sqlite.NewReadOnlyDB(ctx, "scheduler.db")
//	db, err := sqlite.NewDBWithMode(ctx, "scheduler.db", sqlite.AccessModeReadWriteCreate)
//
// # Migrations
//
//	err = sqlite.ApplyMigrations("scheduler.db", "file://migrations/sqlite")
//
// # Testing
//
//	func TestSomething(t *testing.T) {
//		testDB := sqlite.NewTestDBInMemory(t)
//		// testDB.DB, testDB.TxRunner ready to use; cleaned up automatically
//	}
//
//	func TestWithMigrations(t *testing.T) {
//		testDB := sqlite.NewTestDBFile(t)
//		testDB.ApplyTestMigrations(t, "file://migrations/sqlite")
//	}
package sqlite
