package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WaitStrategy selects the backoff shape used between connection attempts.
type WaitStrategy int

const (
	// LinearWait increases the delay by a fixed step each attempt.
	LinearWait WaitStrategy = iota
	// ExponentialWait doubles the delay each attempt, up to MaxInterval.
	ExponentialWait
)

// HealthCheckOptions configures WaitForDB.
type HealthCheckOptions struct {
	// MaxRetries caps the number of attempts; 0 means retry until ctx is done.
	MaxRetries int
	// InitialInterval is the delay before the second attempt.
	InitialInterval time.Duration
	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration
	// Strategy selects how the delay grows between attempts.
	Strategy WaitStrategy
	// PingTimeout bounds each individual ping attempt.
	PingTimeout time.Duration
}

// DefaultHealthCheckOptions returns sensible defaults for startup probing.
func DefaultHealthCheckOptions() HealthCheckOptions {
	return HealthCheckOptions{
		MaxRetries:      10,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Strategy:        ExponentialWait,
		PingTimeout:     5 * time.Second,
	}
}

// WaitForDB blocks until the database answers a ping or the retry budget
// (MaxRetries, or ctx) is exhausted.
func WaitForDB(ctx context.Context, dsn string, opts HealthCheckOptions) error {
	attempt := 0
	interval := opts.InitialInterval

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for database: %w", ctx.Err())
		default:
		}

		attempt++

		err := pingDatabase(ctx, dsn, opts.PingTimeout)
		if err == nil {
			return nil
		}

		if opts.MaxRetries > 0 && attempt >= opts.MaxRetries {
			return fmt.Errorf("database not available after %d attempts: %w", attempt, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(interval):
		}

		interval = calculateNextInterval(interval, opts)
	}
}

// WaitForDBSimple waits for the database with default exponential backoff,
// bounded by the given overall timeout.
func WaitForDBSimple(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := DefaultHealthCheckOptions()
	opts.MaxRetries = 0

	return WaitForDB(ctx, dsn, opts)
}

// HealthCheck performs a single availability probe against dsn.
func HealthCheck(ctx context.Context, dsn string) error {
	return pingDatabase(ctx, dsn, 5*time.Second)
}

// HealthCheckPool probes an existing pool with a ping and a trivial query.
func HealthCheckPool(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("pool is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pool ping failed: %w", err)
	}

	var result int
	err := pool.QueryRow(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("simple query failed: %w", err)
	}

	if result != 1 {
		return fmt.Errorf("unexpected query result: got %d, want 1", result)
	}

	return nil
}

// pingDatabase opens a throwaway connection and pings it.
func pingDatabase(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	return nil
}

// calculateNextInterval grows the retry interval according to opts.Strategy.
func calculateNextInterval(currentInterval time.Duration, opts HealthCheckOptions) time.Duration {
	switch opts.Strategy {
	case LinearWait:
		next := currentInterval + opts.InitialInterval
		if next > opts.MaxInterval {
			return opts.MaxInterval
		}
		return next

	case ExponentialWait:
		next := currentInterval * 2
		if next > opts.MaxInterval {
			return opts.MaxInterval
		}
		return next

	default:
		return opts.InitialInterval
	}
}

// DBStats summarizes pool connection statistics.
type DBStats struct {
	MaxConns        int32
	OpenConns       int32
	InUse           int32
	Idle            int32
	WaitCount       int64
	WaitDuration    time.Duration
	MaxIdleDestroys int64
	MaxLifeCloses   int64
}

// GetPoolStats snapshots a pool's connection statistics.
func GetPoolStats(pool *pgxpool.Pool) DBStats {
	if pool == nil {
		return DBStats{}
	}

	stats := pool.Stat()

	return DBStats{
		MaxConns:        stats.MaxConns(),
		OpenConns:       stats.TotalConns(),
		InUse:           stats.AcquiredConns(),
		Idle:            stats.IdleConns(),
		WaitCount:       stats.EmptyAcquireCount(),
		WaitDuration:    stats.AcquireDuration(),
		MaxIdleDestroys: stats.CanceledAcquireCount(),
		MaxLifeCloses:   int64(stats.ConstructingConns()),
	}
}

// IsHealthy reports whether stats indicate a pool with headroom to spare.
func IsHealthy(stats DBStats) bool {
	if stats.MaxConns == 0 {
		return false
	}

	if stats.OpenConns == 0 {
		return false
	}

	utilizationPercent := float64(stats.InUse) / float64(stats.MaxConns) * 100
	if utilizationPercent > 90 {
		return false
	}

	return true
}

// WaitForDBWithRetries is kept for callers still using the pre-options
// signature.
//
// Deprecated: use WaitForDB with HealthCheckOptions.
func WaitForDBWithRetries(ctx context.Context, dsn string, timeout, interval time.Duration) error {
	opts := HealthCheckOptions{
		MaxRetries:      0,
		InitialInterval: interval,
		MaxInterval:     interval * 10,
		Strategy:        LinearWait,
		PingTimeout:     5 * time.Second,
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return WaitForDB(ctx, dsn, opts)
}
