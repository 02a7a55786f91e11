// Package scheduler provides the fixed-interval ticker that drives the
// scheduling engine's own tick loop.
//
// Features:
//   - Interval-based jobs with time.Ticker
//   - Job overlap control policies (Allow/Skip/Delay)
//   - Per-job timeouts and named jobs
//   - Job ID management with add/remove capabilities
//   - Parent context support for lifecycle management
//   - Graceful shutdown with optional deadline (StopContext)
//   - Idempotent Start/Stop operations
//   - Error handling and panic recovery
//   - Structured logging with slog integration
//   - Optional hooks for observability
//
// Cron-expression parsing and evaluation is not this package's concern: that
// lives in internal/cron, which the loop calls once per tick to decide
// whether a schedule is due. This package only supplies the ticking itself.
//
// Basic usage:
//
//	scheduler := New(Config{Logger: logger})
//
//	tickerID := scheduler.AddTickerJobWithOptions(time.Minute, func(ctx context.Context) error {
//		// Your interval-based task here
//		return nil
//	}, JobOptions{
//		Name:          "scheduler-tick",
//		Timeout:       30*time.Second,
//		OverlapPolicy: SkipIfRunning,
//	})
//
//	scheduler.Start()
//	defer scheduler.Stop()
//
//	// Remove the job when needed
//	scheduler.RemoveTickerJob(tickerID)
//
// Advanced usage with parent context and hooks:
//
//	hooks := JobHooks{
//		OnJobStart: func(jobName string) {
//			log.Printf("Job %s started", jobName)
//		},
//		OnJobFinish: func(jobName string, duration time.Duration, err error) {
//			log.Printf("Job %s finished in %v (error: %v)", jobName, duration, err)
//		},
//	}
//
//	scheduler := NewWithContext(parentCtx, Config{
//		Logger:   logger,
//		JobHooks: hooks,
//	})
//
// Overlap policies:
//   - AllowOverlap: Jobs can run concurrently (default)
//   - SkipIfRunning: Skip execution if previous run is still active
//   - DelayIfRunning: Wait for previous run to finish before starting
//
// The scheduler ensures that:
//   - Jobs respect configured overlap policies
//   - Panics are recovered and logged
//   - Errors are logged but don't stop the scheduler
//   - Context cancellation stops all jobs gracefully
//   - Start/Stop operations are idempotent and thread-safe
//   - Graceful shutdown can be bounded with StopContext
package scheduler
