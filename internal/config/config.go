// Package config loads the configuration of the flowstated daemon from the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// StoreKind is an enumeration of the stores supported by the daemon.
type StoreKind string

const (
	// MemoryStore keeps engine state in memory. State is lost when the daemon
	// stops.
	MemoryStore StoreKind = "memory"

	// BoltStore keeps engine state in a BoltDB file.
	BoltStore StoreKind = "bolt"

	// SQLiteStore keeps engine state in an SQLite database.
	SQLiteStore StoreKind = "sqlite"
)

// Config is the configuration of the daemon.
type Config struct {
	Store       StoreKind `env:"FLOWSTATE_STORE"       envDefault:"bolt"`
	StorePath   string    `env:"FLOWSTATE_STORE_PATH"  envDefault:"flowstate.db"`
	Definitions string    `env:"FLOWSTATE_DEFINITIONS" envDefault:"definitions"`

	RedisURL    string `env:"FLOWSTATE_REDIS_URL"`
	RedisStream string `env:"FLOWSTATE_REDIS_STREAM" envDefault:"flowstate:events"`

	OTelEndpoint  string `env:"FLOWSTATE_OTEL_ENDPOINT"`
	ListenAddress string `env:"FLOWSTATE_LISTEN_ADDRESS" envDefault:":50555"`

	ConcurrencyLimit uint          `env:"FLOWSTATE_CONCURRENCY_LIMIT"`
	PollInterval     time.Duration `env:"FLOWSTATE_POLL_INTERVAL"     envDefault:"2s"`
	LockDuration     time.Duration `env:"FLOWSTATE_LOCK_DURATION"     envDefault:"5m"`
	LockOwner        string        `env:"FLOWSTATE_LOCK_OWNER"`
	JobRetries       uint          `env:"FLOWSTATE_JOB_RETRIES"       envDefault:"3"`

	Debug bool `env:"FLOWSTATE_DEBUG"`
}

// Load reads the configuration from the environment.
//
// Variables defined in the given .env files are loaded first, without
// overriding variables that are already set. Missing files are ignored. If no
// files are given, ".env" in the working directory is used.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate returns an error if the configuration is invalid.
func (c Config) Validate() error {
	switch c.Store {
	case MemoryStore:
	case BoltStore, SQLiteStore:
		if c.StorePath == "" {
			return fmt.Errorf("FLOWSTATE_STORE_PATH must be set when using the %s store", c.Store)
		}
	default:
		return fmt.Errorf("FLOWSTATE_STORE must be one of memory, bolt or sqlite, not %q", c.Store)
	}

	if c.PollInterval < 0 || c.LockDuration < 0 {
		return errors.New("durations must not be negative")
	}

	return nil
}
