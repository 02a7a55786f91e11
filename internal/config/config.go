package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration values for the scheduler core.
type Config struct {
	Env   string `validate:"required,oneof=dev prod"`
	Store struct {
		// Driver selects the persistence backend: "postgres" or "sqlite".
		Driver string `validate:"required,oneof=postgres sqlite"`
		// DSN is a PostgreSQL connection string when Driver is "postgres",
		// or a file path (or ":memory:") when Driver is "sqlite".
		DSN string `validate:"required"`
		// MigrationsPath points at the driver-specific migrations directory.
		MigrationsPath string `validate:"required"`
	}
	Loop struct {
		// CheckInterval is the wall-clock time between scheduler loop ticks.
		CheckInterval time.Duration `validate:"required,gt=0"`
		// BatchSize bounds how many due schedules are fetched per tick.
		BatchSize int `validate:"required,gt=0"`
		// MaxConcurrentInstances is a defensive global ceiling across all schedules.
		MaxConcurrentInstances int `validate:"required,gt=0"`
		// DefaultTimezone is used when a schedule omits a timezone.
		DefaultTimezone string `validate:"required"`
		// EnabledByDefault is the initial `enabled` value for newly created schedules.
		EnabledByDefault bool
		// MaxLookAhead bounds how far ahead next_run_at is pre-computed.
		MaxLookAhead time.Duration `validate:"required,gt=0"`
		// CleanupOlderThan is the retention window for terminal instance rows.
		CleanupOlderThan time.Duration `validate:"required,gt=0"`
		// TxTimeout bounds a single store transaction.
		TxTimeout time.Duration `validate:"required,gt=0"`
	}
	HTTP struct {
		Addr string `validate:"required"`
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	c.Env = getenv("ENV", "prod")

	c.Store.Driver = strings.ToLower(getenv("STORE_DRIVER", "postgres"))
	c.Store.DSN = getenv("STORE_DSN", "postgres://localhost:5432/taskscheduler?sslmode=disable")
	c.Store.MigrationsPath = getenv("STORE_MIGRATIONS_PATH", "file://migrations/postgres")

	c.Loop.CheckInterval = getenvDuration("LOOP_CHECK_INTERVAL", 60*time.Second)
	c.Loop.BatchSize = getenvInt("LOOP_BATCH_SIZE", 100)
	c.Loop.MaxConcurrentInstances = getenvInt("LOOP_MAX_CONCURRENT_INSTANCES", 1000)
	c.Loop.DefaultTimezone = getenv("LOOP_DEFAULT_TIMEZONE", "UTC")
	c.Loop.EnabledByDefault = getenvBool("LOOP_ENABLED_BY_DEFAULT", true)
	c.Loop.MaxLookAhead = getenvDuration("LOOP_MAX_LOOK_AHEAD", 4*365*24*time.Hour)
	c.Loop.CleanupOlderThan = getenvDuration("LOOP_CLEANUP_OLDER_THAN", 30*24*time.Hour)
	c.Loop.TxTimeout = getenvDuration("LOOP_TX_TIMEOUT", 5*time.Second)

	c.HTTP.Addr = getenv("HTTP_ADDR", ":8080")

	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", "data/logs/taskschedulerd.log")

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
