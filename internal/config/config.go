package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Work item service connection
	WorkstoreURL    string
	WorkstoreAPIKey string

	// Auth
	DocsyncAPIKey string

	// Storage
	LayoutDir    string
	DatabasePath string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Job state
	JobTTL time.Duration

	// HTTP
	CORSOrigins []string

	// Sync behaviour
	VerifyAfterSync bool
	BoilerplateText string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		WorkstoreURL:    envOr("WORKSTORE_URL", "http://localhost:8080"),
		WorkstoreAPIKey: os.Getenv("WORKSTORE_API_KEY"),

		DocsyncAPIKey: os.Getenv("DOCSYNC_API_KEY"),

		LayoutDir:    envOr("LAYOUT_DIR", "./layouts"),
		DatabasePath: envOr("DATABASE_PATH", "docsync.db"),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		CORSOrigins: envList("CORS_ORIGINS", []string{"*"}),

		VerifyAfterSync: envBool("VERIFY_AFTER_SYNC", true),
		BoilerplateText: os.Getenv("BOILERPLATE_TEXT"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.WorkstoreAPIKey == "" {
		return fmt.Errorf("WORKSTORE_API_KEY is required")
	}
	if c.DocsyncAPIKey == "" {
		return fmt.Errorf("DOCSYNC_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
