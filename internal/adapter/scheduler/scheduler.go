package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// JobFunc is a unit of periodic work run by the Scheduler.
type JobFunc func(ctx context.Context) error

// TickerJobID identifies a job registered on a fixed interval.
type TickerJobID int

// OverlapPolicy controls what happens when a job's previous run is still
// executing at the next scheduled firing.
type OverlapPolicy int

const (
	// AllowOverlap lets runs execute concurrently (default).
	AllowOverlap OverlapPolicy = iota
	// SkipIfRunning skips a firing while the previous run is still active.
	SkipIfRunning
	// DelayIfRunning waits for the previous run to finish before starting.
	DelayIfRunning
)

// JobOptions configures a single job registration.
type JobOptions struct {
	// Name identifies the job in logs.
	Name string
	// Timeout bounds a single run's execution time, if set.
	Timeout time.Duration
	// OverlapPolicy selects how overlapping firings are handled.
	OverlapPolicy OverlapPolicy
}

// jobWrapper pairs a job with its options and overlap-tracking state.
type jobWrapper struct {
	job     JobFunc
	options JobOptions
	running sync.Mutex
}

// tickerJob tracks a running interval-based job so it can be stopped later.
type tickerJob struct {
	id      TickerJobID
	ticker  *time.Ticker
	cancel  context.CancelFunc
	wrapper *jobWrapper
}

// Scheduler drives periodic jobs on a fixed interval and is the heartbeat
// the scheduling engine's tick loop runs on. Cron-expression evaluation
// itself lives in internal/cron; this adapter only supplies the ticking.
type Scheduler struct {
	logger       *slog.Logger
	hooks        JobHooks
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	tickerJobs   map[TickerJobID]*tickerJob
	nextTickerID TickerJobID
	mu           sync.Mutex
	stopOnce     sync.Once
	startOnce    sync.Once
}

// JobHooks are optional observability callbacks invoked around each run.
type JobHooks struct {
	OnJobStart  func(jobName string)
	OnJobFinish func(jobName string, duration time.Duration, err error)
	OnJobError  func(jobName string, err error)
}

// Config configures a new Scheduler.
type Config struct {
	Logger   *slog.Logger
	JobHooks JobHooks
}

// New creates a Scheduler using context.Background() as its parent context.
func New(cfg Config) *Scheduler {
	return NewWithContext(context.Background(), cfg)
}

// NewWithContext creates a Scheduler whose lifetime is tied to parentCtx.
func NewWithContext(parentCtx context.Context, cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(parentCtx)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		logger:       logger,
		hooks:        cfg.JobHooks,
		ctx:          ctx,
		cancel:       cancel,
		tickerJobs:   make(map[TickerJobID]*tickerJob),
		nextTickerID: 1,
	}
}

// AddTickerJob registers job on a fixed interval with default options.
func (s *Scheduler) AddTickerJob(interval time.Duration, job JobFunc) TickerJobID {
	return s.AddTickerJobWithOptions(interval, job, JobOptions{})
}

// AddTickerJobWithOptions registers job on a fixed interval with opts.
func (s *Scheduler) AddTickerJobWithOptions(interval time.Duration, job JobFunc, opts JobOptions) TickerJobID {
	wrapper := &jobWrapper{
		job:     job,
		options: opts,
	}

	s.mu.Lock()
	id := s.nextTickerID
	s.nextTickerID++

	ticker := time.NewTicker(interval)
	ctx, cancel := context.WithCancel(s.ctx)

	tj := &tickerJob{
		id:      id,
		ticker:  ticker,
		cancel:  cancel,
		wrapper: wrapper,
	}

	s.tickerJobs[id] = tj
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		defer cancel()

		for {
			select {
			case <-ticker.C:
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.runJobWrapper(wrapper)
				}()
			case <-ctx.Done():
				s.logger.Debug("ticker job stopped due to context cancellation", "name", opts.Name, "id", id)
				return
			}
		}
	}()

	s.logger.Info("ticker job added", "interval", interval, "name", opts.Name, "overlap_policy", opts.OverlapPolicy, "id", id)
	return id
}

// RemoveTickerJob unregisters the ticker job with the given id.
func (s *Scheduler) RemoveTickerJob(id TickerJobID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.tickerJobs[id]
	if !exists {
		return false
	}

	job.cancel()
	delete(s.tickerJobs, id)

	s.logger.Info("ticker job removed", "id", id, "name", job.wrapper.options.Name)
	return true
}

// Start arms the watcher that runs the shutdown sequence once the
// scheduler's context is canceled. Ticker jobs begin firing as soon as they
// are registered, whether or not Start has been called.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("starting scheduler")

		go func() {
			<-s.ctx.Done()
			s.logger.Info("stopping scheduler due to context cancellation")
			s.stopOnce.Do(s.stop)
		}()
	})
}

// Stop stops the scheduler and waits for all jobs to finish.
func (s *Scheduler) Stop() {
	if !s.IsRunning() {
		return
	}
	s.logger.Info("stopping scheduler")
	s.cancel()
	s.stopOnce.Do(s.stop)
}

// StopContext stops the scheduler, returning ctx.Err() if ctx expires before
// shutdown completes. Shutdown still runs to completion either way.
func (s *Scheduler) StopContext(ctx context.Context) error {
	if !s.IsRunning() {
		return nil
	}

	s.logger.Info("stopping scheduler with deadline")
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.stopOnce.Do(s.stop)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped gracefully within deadline")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop deadline exceeded, but shutdown will complete")
		<-done
		return ctx.Err()
	}
}

// stop performs the actual shutdown sequence.
func (s *Scheduler) stop() {
	s.mu.Lock()
	for _, job := range s.tickerJobs {
		job.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// runJobWrapper runs a single job invocation, applying its overlap policy,
// timeout, panic recovery, and hooks.
func (s *Scheduler) runJobWrapper(wrapper *jobWrapper) {
	jobName := wrapper.options.Name
	if jobName == "" {
		jobName = "unnamed"
	}

	if wrapper.options.OverlapPolicy != AllowOverlap {
		if wrapper.options.OverlapPolicy == SkipIfRunning {
			if !wrapper.running.TryLock() {
				s.logger.Debug("skipping job execution, already running", "name", jobName)
				return
			}
			defer wrapper.running.Unlock()
		} else if wrapper.options.OverlapPolicy == DelayIfRunning {
			wrapper.running.Lock()
			defer wrapper.running.Unlock()
		}
	}

	if s.hooks.OnJobStart != nil {
		s.hooks.OnJobStart(jobName)
	}

	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("panic: %v", r)
			s.logger.Error("job panicked", "name", jobName, "panic", r)
			if s.hooks.OnJobError != nil {
				s.hooks.OnJobError(jobName, panicErr)
			}
		}
	}()

	ctx := s.ctx
	var cancel context.CancelFunc
	if wrapper.options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, wrapper.options.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := wrapper.job(ctx)
	duration := time.Since(start)

	if s.hooks.OnJobFinish != nil {
		s.hooks.OnJobFinish(jobName, duration, err)
	}

	if err != nil {
		s.logger.Error("job failed", "name", jobName, "error", err, "duration", duration)
		if s.hooks.OnJobError != nil {
			s.hooks.OnJobError(jobName, err)
		}
	} else {
		s.logger.Debug("job completed successfully", "name", jobName, "duration", duration)
	}
}

// IsRunning reports whether the scheduler's context is still active.
func (s *Scheduler) IsRunning() bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
		return true
	}
}
