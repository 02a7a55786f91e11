// Package commands implements the taskschedulerctl CLI surface (spec.md §6)
// using cobra, one subcommand per verb.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/taskscheduler/core/internal/config"
	"github.com/taskscheduler/core/internal/errs"
	"github.com/taskscheduler/core/internal/manage"
	"github.com/taskscheduler/core/internal/metrics"
	"github.com/taskscheduler/core/internal/store"
	"github.com/taskscheduler/core/internal/store/postgres"
	"github.com/taskscheduler/core/internal/store/sqlite"
)

var configFile string

// errValidationFailure is returned by `validate` when a cron expression is
// invalid, so ExitCodeFor classifies it as a validation failure (exit 2)
// without a real store-layer error to wrap.
var errValidationFailure = errs.ErrInvalidExpression

// loadConfig reads the env-based Config, then layers configFile on top of
// it (if set) via viper — a file value overrides the matching env default.
func loadConfig() (config.Config, error) {
	if configFile != "" {
		v := viper.New()
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config file: %w", err)
		}
		for key, envVar := range configFileEnvVars {
			if v.IsSet(key) {
				_ = os.Setenv(envVar, v.GetString(key))
			}
		}
	}
	return config.Load()
}

// configFileEnvVars maps dotted config-file keys to the environment
// variables internal/config.Load reads, so a --config file can override
// the same settings without duplicating the loading logic.
var configFileEnvVars = map[string]string{
	"store.driver":                  "STORE_DRIVER",
	"store.dsn":                     "STORE_DSN",
	"store.migrations_path":         "STORE_MIGRATIONS_PATH",
	"loop.check_interval":           "LOOP_CHECK_INTERVAL",
	"loop.batch_size":               "LOOP_BATCH_SIZE",
	"loop.max_concurrent_instances": "LOOP_MAX_CONCURRENT_INSTANCES",
	"loop.default_timezone":        "LOOP_DEFAULT_TIMEZONE",
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if _, err := postgres.Migrate(cfg.Store.DSN); err != nil {
			return nil, err
		}
		return postgres.New(ctx, cfg.Store.DSN)
	case "sqlite":
		if err := sqlite.Migrate(cfg.Store.DSN); err != nil {
			return nil, err
		}
		return sqlite.New(ctx, cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// withManager opens the configured store, builds a Manager over it, runs
// fn, then closes the store regardless of fn's outcome.
func withManager(fn func(ctx context.Context, m *manage.Manager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	m := manage.New(st, cfg.Loop.DefaultTimezone, nil)
	return fn(ctx, m)
}

// withMetrics mirrors withManager for the metrics verb.
func withMetrics(fn func(ctx context.Context, agg *metrics.Aggregator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(ctx, metrics.New(st))
}

// ExitCodeFor maps an error to the CLI's three-tier exit code scheme
// (spec.md §7): 0 success, 1 operational failure, 2 validation failure.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if errs.IsInvalidExpression(err) || errs.IsInvalidTimezone(err) {
		return 2
	}
	return 1
}
