package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskscheduler/core/internal/adapter/scheduler"
	"github.com/taskscheduler/core/internal/config"
	"github.com/taskscheduler/core/internal/loop"
	"github.com/taskscheduler/core/internal/metrics"
	"github.com/taskscheduler/core/internal/platform/logger"
	"github.com/taskscheduler/core/internal/store"
	"github.com/taskscheduler/core/internal/store/postgres"
	"github.com/taskscheduler/core/internal/store/sqlite"
)

// App wires configuration, the store, the scheduler loop, and a minimal
// health/metrics HTTP surface into a long-running daemon process.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// New creates a new App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "taskschedulerd",
	})
	return &App{cfg: cfg, log: log}, nil
}

// Run opens the configured store, registers the scheduler loop on a ticker
// job, and serves a health/metrics endpoint until the process receives
// SIGINT/SIGTERM, then shuts everything down gracefully.
func (a *App) Run() error {
	a.log.Info("starting", "store_driver", a.cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	l := loop.New(st, loop.Config{
		CheckInterval:          a.cfg.Loop.CheckInterval,
		BatchSize:              a.cfg.Loop.BatchSize,
		MaxConcurrentInstances: a.cfg.Loop.MaxConcurrentInstances,
		DefaultTimezone:        a.cfg.Loop.DefaultTimezone,
	}, a.log)

	sched := scheduler.NewWithContext(ctx, scheduler.Config{
		Logger: a.log,
		JobHooks: scheduler.JobHooks{
			OnJobError: func(jobName string, err error) {
				a.log.Error("scheduler loop tick failed", "job", jobName, "error", err)
			},
		},
	})
	l.Register(sched)
	sched.Start()
	defer sched.Stop()

	agg := metrics.New(st)
	srv := a.newHealthServer(agg)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("health server failed", "error", err)
		}
	}()

	<-ctx.Done()
	a.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("health server shutdown failed", "error", err)
	}

	return sched.StopContext(shutdownCtx)
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.Store.Driver {
	case "postgres":
		if _, err := postgres.Migrate(a.cfg.Store.DSN); err != nil {
			return nil, err
		}
		return postgres.New(ctx, a.cfg.Store.DSN)
	case "sqlite":
		if err := sqlite.Migrate(a.cfg.Store.DSN); err != nil {
			return nil, err
		}
		return sqlite.New(ctx, a.cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

func (a *App) newHealthServer(agg *metrics.Aggregator) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics.json", func(w http.ResponseWriter, r *http.Request) {
		snap, err := agg.Snapshot(r.Context(), time.Now().UTC())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	})
	return &http.Server{Addr: a.cfg.HTTP.Addr, Handler: mux}
}
