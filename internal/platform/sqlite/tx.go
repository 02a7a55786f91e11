package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// txKey is the context key under which an in-flight transaction is stored.
type txKey struct{}

// Querier unifies the query-executing methods shared by a database handle
// and a transaction, so repositories can work against one interface
// regardless of whether a call runs inside a transaction or directly
// against the database.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Compile-time assertions that these types satisfy Querier.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
	_ Querier = (*manualTx)(nil)
)

// writeRequest is a single queued write-transaction request.
type writeRequest struct {
	fn       func(context.Context) error
	resultCh chan error
	ctx      context.Context
}

// TxRunner runs code inside a transaction, committing on success and
// rolling back on error. SQLite has a single writer, so TxRunner supports
// an optional write queue to serialize writers and a retry loop for
// SQLITE_BUSY.
type TxRunner struct {
	DB             *sql.DB
	TxLockMode     TxLockMode
	RetryConfig    *RetryConfig
	writeQueue     chan writeRequest
	writeQueueDone chan struct{}
	enableQueue    bool
}

// NewTxRunner creates a TxRunner backed by db, using default options.
func NewTxRunner(db *sql.DB) *TxRunner {
	return NewTxRunnerWithOptions(db, DefaultDBOptions())
}

// RetryConfig controls the backoff applied when retrying on SQLITE_BUSY.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// NewTxRunnerWithOptions creates a TxRunner backed by db with the given options.
func NewTxRunnerWithOptions(db *sql.DB, opts DBOptions) *TxRunner {
	runner := &TxRunner{
		DB:         db,
		TxLockMode: opts.TxLockMode,
		RetryConfig: &RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			Multiplier:   2.0,
		},
		enableQueue: opts.EnableWriteQueue,
	}

	if opts.EnableWriteQueue {
		runner.writeQueue = make(chan writeRequest, opts.WriteQueueSize)
		runner.writeQueueDone = make(chan struct{})
		go runner.runWriteQueue()
	}

	return runner
}

// Close shuts down the write queue, if one is running.
func (r *TxRunner) Close() error {
	if r.enableQueue && r.writeQueue != nil {
		close(r.writeQueue)
		<-r.writeQueueDone
	}
	return nil
}

// WithinTx runs fn inside a transaction. If fn returns an error the
// transaction is rolled back; otherwise it is committed. The transaction is
// reachable from inside fn via SqlTx(ctx). Routes through the write queue
// when one is enabled, and retries on SQLITE_BUSY.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.enableQueue {
		return r.enqueueWrite(ctx, fn)
	}

	return r.executeWithRetry(ctx, fn)
}

// WithinTxWrite runs a write operation inside a transaction. Always routes
// through the write queue when one is enabled.
func (r *TxRunner) WithinTxWrite(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.WithinTx(ctx, fn)
}

// WithinTxRead runs a read operation inside a transaction, bypassing the
// write queue.
func (r *TxRunner) WithinTxRead(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.executeWithRetry(ctx, fn)
}

// WithinSavepoint runs fn inside a savepoint. If a transaction is already
// active in ctx, the savepoint nests inside it; otherwise a new transaction
// is opened first. On error the savepoint is rolled back; on success it is
// released.
func (r *TxRunner) WithinSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if existingQuerier, hasActiveTx := GetTxQuerier(ctx); hasActiveTx {
		return r.executeSavepoint(ctx, existingQuerier, fn)
	}

	return r.executeWithRetry(ctx, func(txCtx context.Context) error {
		querier := r.GetQuerier(txCtx)
		return r.executeSavepoint(txCtx, querier, fn)
	})
}

// SqlTx extracts the active *sql.Tx from ctx, if any. Manually-locked
// transactions (IMMEDIATE/EXCLUSIVE) are not *sql.Tx and report false here;
// use GetTxQuerier for those.
func SqlTx(ctx context.Context) (*sql.Tx, bool) {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx, true
	}
	return nil, false
}

// GetTxQuerier extracts whatever transaction (sql.Tx or manualTx) is
// active in ctx, as a Querier.
func GetTxQuerier(ctx context.Context) (Querier, bool) {
	if querier, ok := ctx.Value(txKey{}).(Querier); ok {
		return querier, true
	}
	return nil, false
}

// GetQuerier returns the transaction in ctx if present, otherwise the
// underlying database handle. The returned value always satisfies Querier.
func (r *TxRunner) GetQuerier(ctx context.Context) Querier {
	if querier, ok := GetTxQuerier(ctx); ok {
		return querier
	}
	return r.DB
}

// BeginTx opens a transaction and stores it in the returned context for
// manual commit/rollback by the caller.
func (r *TxRunner) BeginTx(ctx context.Context, opts *sql.TxOptions) (context.Context, *sql.Tx, error) {
	tx, err := r.DB.BeginTx(ctx, opts)
	if err != nil {
		return ctx, nil, err
	}

	ctx = context.WithValue(ctx, txKey{}, tx)
	return ctx, tx, nil
}

// runWriteQueue serializes queued write transactions in its own goroutine.
func (r *TxRunner) runWriteQueue() {
	defer close(r.writeQueueDone)

	for req := range r.writeQueue {
		select {
		case <-req.ctx.Done():
			req.resultCh <- req.ctx.Err()
		default:
			err := r.executeWithRetry(req.ctx, req.fn)
			req.resultCh <- err
		}
		close(req.resultCh)
	}
}

// enqueueWrite submits fn to the write queue and waits for its result.
func (r *TxRunner) enqueueWrite(ctx context.Context, fn func(context.Context) error) error {
	req := writeRequest{
		fn:       fn,
		resultCh: make(chan error, 1),
		ctx:      ctx,
	}

	select {
	case r.writeQueue <- req:
		select {
		case err := <-req.resultCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// executeWithRetry runs a transaction attempt, retrying on SQLITE_BUSY with
// exponential backoff up to RetryConfig.MaxAttempts.
func (r *TxRunner) executeWithRetry(ctx context.Context, fn func(context.Context) error) error {
	delay := r.RetryConfig.InitialDelay

	for attempt := 1; attempt <= r.RetryConfig.MaxAttempts; attempt++ {
		err := r.executeTx(ctx, fn)

		if err == nil || attempt == r.RetryConfig.MaxAttempts {
			return err
		}

		if !r.isSQLiteBusyError(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * r.RetryConfig.Multiplier)
			if delay > r.RetryConfig.MaxDelay {
				delay = r.RetryConfig.MaxDelay
			}
		}
	}

	return fmt.Errorf("max retry attempts exceeded")
}

// executeTx runs a single transaction attempt.
func (r *TxRunner) executeTx(ctx context.Context, fn func(context.Context) error) error {
	if _, existingTx := GetTxQuerier(ctx); existingTx {
		return fmt.Errorf("nested transactions are not supported by SQLite")
	}

	if r.TxLockMode != TxLockDeferred {
		return r.executeTxWithLockMode(ctx, fn)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, txKey{}, tx)

	if err := fn(ctx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// executeTxWithLockMode runs a transaction opened with an explicit locking
// mode (IMMEDIATE/EXCLUSIVE), which database/sql's Tx API can't express
// directly, so it wraps the session in manualTx instead.
func (r *TxRunner) executeTxWithLockMode(ctx context.Context, fn func(context.Context) error) error {
	beginQuery := fmt.Sprintf("BEGIN %s", r.TxLockMode)
	_, err := r.DB.ExecContext(ctx, beginQuery)
	if err != nil {
		return err
	}

	manualTxWrapper := &manualTx{db: r.DB, ctx: ctx}
	ctx = context.WithValue(ctx, txKey{}, manualTxWrapper)

	if err := fn(ctx); err != nil {
		_, _ = r.DB.ExecContext(ctx, "ROLLBACK")
		return err
	}

	_, err = r.DB.ExecContext(ctx, "COMMIT")
	return err
}

// manualTx represents a transaction begun with an explicit BEGIN statement,
// since database/sql can't hand back a *sql.Tx for a connection-level lock
// mode it didn't open itself.
type manualTx struct {
	db  *sql.DB
	ctx context.Context
}

func (m *manualTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return m.db.ExecContext(ctx, query, args...)
}

func (m *manualTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return m.db.QueryContext(ctx, query, args...)
}

func (m *manualTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return m.db.QueryRowContext(ctx, query, args...)
}

func (m *manualTx) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return m.db.PrepareContext(ctx, query)
}

// isSQLiteBusyError reports whether err reflects a SQLITE_BUSY condition.
func (r *TxRunner) isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database table is locked")
}

// executeSavepoint runs fn inside a named savepoint on querier.
func (r *TxRunner) executeSavepoint(ctx context.Context, querier Querier, fn func(context.Context) error) error {
	savepointName := fmt.Sprintf("sp_%d", time.Now().UnixNano())

	if _, err := querier.ExecContext(ctx, "SAVEPOINT "+savepointName); err != nil {
		return fmt.Errorf("failed to create savepoint %s: %w", savepointName, err)
	}

	if err := fn(ctx); err != nil {
		if _, rollbackErr := querier.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepointName); rollbackErr != nil {
			return fmt.Errorf("failed to rollback to savepoint %s: %v (original error: %w)", savepointName, rollbackErr, err)
		}
		_, _ = querier.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointName)
		return err
	}

	if _, err := querier.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointName); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", savepointName, err)
	}

	return nil
}
