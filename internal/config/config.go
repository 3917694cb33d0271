package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the server configuration, loaded from environment variables.
type Config struct {
	Port    string // HTTP listen port
	DBPath  string // SQLite database file
	DataDir string // root directory for uploaded job files

	AdminToken string // bearer token for the admin API

	// FailureThreshold is the number of reported errors after which a job
	// becomes terminally errored instead of being re-armed.
	FailureThreshold int64

	// RunnerStaleAfter is how long a runner may stay silent before its
	// processing jobs are re-armed by the sweeper.
	RunnerStaleAfter time.Duration

	// SweepInterval is how often the background sweeper runs.
	SweepInterval time.Duration

	// JobRetention is how long finished jobs are kept before deletion.
	JobRetention time.Duration

	// RequestRatePerSecond bounds the polling load on the job request
	// and accept endpoints.
	RequestRatePerSecond float64
}

// Load reads the configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Port:                 getEnv("PORT", "8080"),
		DBPath:               getEnv("DB_PATH", "data/tremo.db"),
		DataDir:              getEnv("DATA_DIR", "data/files"),
		AdminToken:           getEnv("ADMIN_TOKEN", ""),
		FailureThreshold:     int64(getEnvInt("JOB_FAILURE_THRESHOLD", 5)),
		RunnerStaleAfter:     getEnvDuration("RUNNER_STALE_AFTER", 5*time.Minute),
		SweepInterval:        getEnvDuration("SWEEP_INTERVAL", time.Minute),
		JobRetention:         getEnvDuration("JOB_RETENTION", 48*time.Hour),
		RequestRatePerSecond: float64(getEnvInt("REQUEST_RATE_PER_SECOND", 10)),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}
