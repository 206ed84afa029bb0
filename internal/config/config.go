// Package config reads runtime settings from the environment, with optional
// command-line flag overrides.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the settings shared by the binaries in cmd/.
type Config struct {
	Port             string
	GCSBucket        string
	RedisURL         string
	SessionTTL       time.Duration
	BQProject        string
	BQDataset        string
	GeminiModel      string
	DetectionProfile string
	LogLevel         string
	Workers          int
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:       "8080",
		SessionTTL: 24 * time.Hour,
		BQDataset:  "statement_insights",
		LogLevel:   "info",
		Workers:    5,
	}
}

// FromEnv overlays environment variables on Defaults. lookup is usually
// os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &cfg.Port)
	str("GCS_BUCKET", &cfg.GCSBucket)
	str("REDIS_URL", &cfg.RedisURL)
	str("BQ_PROJECT", &cfg.BQProject)
	str("BQ_DATASET", &cfg.BQDataset)
	str("GEMINI_MODEL", &cfg.GeminiModel)
	str("DETECTION_PROFILE", &cfg.DetectionProfile)
	str("LOG_LEVEL", &cfg.LogLevel)

	if v, ok := lookup("SESSION_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("FromEnv: SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = ttl
	}
	if v, ok := lookup("WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("FromEnv: WORKERS: %w", err)
		}
		cfg.Workers = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the process environment.
func Load() (Config, error) {
	return FromEnv(os.LookupEnv)
}

// RegisterFlags binds flags to cfg so that command-line values override the
// environment. Call fs.Parse afterwards.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Port, "port", c.Port, "HTTP listen port")
	fs.StringVar(&c.GCSBucket, "gcs-bucket", c.GCSBucket, "bucket for raw statement uploads (empty disables)")
	fs.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "Redis address or URL for sessions (empty uses memory)")
	fs.DurationVar(&c.SessionTTL, "session-ttl", c.SessionTTL, "how long sessions are kept")
	fs.StringVar(&c.BQProject, "bq-project", c.BQProject, "BigQuery project for the archive (empty disables)")
	fs.StringVar(&c.BQDataset, "bq-dataset", c.BQDataset, "BigQuery dataset for the archive")
	fs.StringVar(&c.GeminiModel, "gemini-model", c.GeminiModel, "model used to suggest column mappings (empty disables)")
	fs.StringVar(&c.DetectionProfile, "profile", c.DetectionProfile, "YAML detection profile merged over the defaults")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.IntVar(&c.Workers, "workers", c.Workers, "ingest job workers")
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("Validate: workers must be positive, got %d", c.Workers)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("Validate: session ttl must be positive, got %s", c.SessionTTL)
	}
	return nil
}

// ArchiveEnabled reports whether a BigQuery project was configured.
func (c Config) ArchiveEnabled() bool {
	return c.BQProject != "" && c.BQDataset != ""
}
