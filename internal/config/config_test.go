package config

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":        "9000",
		"REDIS_URL":   "redis://localhost:6379/0",
		"SESSION_TTL": "90m",
		"BQ_PROJECT":  "proj",
		"WORKERS":     "2",
		"LOG_LEVEL":   "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 90*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.ArchiveEnabled())
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"bad ttl":      {"SESSION_TTL": "tomorrow"},
		"bad workers":  {"WORKERS": "many"},
		"zero workers": {"WORKERS": "0"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env(vars))
			assert.Error(t, err)
		})
	}
}

func TestRegisterFlags(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"PORT": "9000"}))
	require.NoError(t, err)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-port", "7000", "-workers", "3"}))

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "statement_insights", cfg.BQDataset)
}
