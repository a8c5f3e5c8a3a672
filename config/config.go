// Package config loads environment-keyed configuration, the way the
// teacher's worker_config.go did: godotenv for local development, then a
// flat struct populated from os.Getenv with typed defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mailsieve/pkg/apperr"
)

// Config is the process-wide configuration snapshot (spec §6).
type Config struct {
	// Mailbox
	MyEmails      []string
	IMAPUser      string
	IMAPPassword  string
	IMAPServer    string
	IMAPBatchSize int

	// Model / storage
	ModelDir        string
	TrainingDataDir string
	DBPath          string

	// Control surface
	AdminAPIKey string
	JWTSecret   string
	ListenAddr  string

	// Job Controller
	EnableAutoClassification bool
	EnableRecheckJob         bool
	RecheckIntervalHours     int
	IngestIntervalMinutes    int
	IngestLimit              int

	// Reconciliation
	VerificationLabel string

	// Locking (component G); empty means in-process only.
	RedisURL string
}

// Load reads configuration from the environment, applying a .env file in
// the working directory first if present (godotenv.Load's error for a
// missing file is ignored, mirroring the teacher's bootstrap).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		MyEmails:      splitCSV(os.Getenv("MY_EMAIL")),
		IMAPUser:      os.Getenv("IMAP_USER"),
		IMAPPassword:  os.Getenv("IMAP_PASSWORD"),
		IMAPServer:    os.Getenv("IMAP_SERVER"),
		IMAPBatchSize: envInt("IMAP_BATCH_SIZE", 50),

		ModelDir:        envOr("MODEL_DIR", "./model"),
		TrainingDataDir: envOr("TRAINING_DATA_DIR", "./training_data"),
		DBPath:          envOr("DB_PATH", "./mailsieve.db"),

		AdminAPIKey: os.Getenv("ADMIN_API_KEY"),
		JWTSecret:   envOr("JWT_SECRET", os.Getenv("ADMIN_API_KEY")),
		ListenAddr:  envOr("LISTEN_ADDR", ":8080"),

		EnableAutoClassification: envBool("ENABLE_AUTO_CLASSIFICATION", true),
		EnableRecheckJob:         envBool("ENABLE_RECHECK_JOB", true),
		RecheckIntervalHours:     envInt("RECHECK_INTERVAL_HOURS", 6),
		IngestIntervalMinutes:    envInt("INGEST_INTERVAL_MINUTES", 5),
		IngestLimit:              envInt("INGEST_BATCH_LIMIT", 100),

		VerificationLabel: envOr("VERIFICATION_LABEL", "__VERIFIED__"),

		RedisURL: os.Getenv("REDIS_URL"),
	}

	if cfg.AdminAPIKey == "" {
		// Fail-closed: a missing admin key must never silently leave
		// privileged routes unauthenticated (spec §6 supplement).
		return nil, apperr.ConfigError("ADMIN_API_KEY is required")
	}

	return cfg, nil
}

// RecheckInterval is RecheckIntervalHours as a time.Duration.
func (c *Config) RecheckInterval() time.Duration {
	return time.Duration(c.RecheckIntervalHours) * time.Hour
}

// IngestInterval is IngestIntervalMinutes as a time.Duration.
func (c *Config) IngestInterval() time.Duration {
	return time.Duration(c.IngestIntervalMinutes) * time.Minute
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// Validate performs startup sanity checks beyond simple presence, surfaced
// as a single combined error so operators see every problem at once.
func (c *Config) Validate() error {
	var problems []string
	if len(c.MyEmails) == 0 {
		problems = append(problems, "MY_EMAIL must name at least one self-address")
	}
	if c.IngestBatchLimitInvalid() {
		problems = append(problems, "INGEST_BATCH_LIMIT must be positive")
	}
	if len(problems) > 0 {
		return apperr.ConfigError(fmt.Sprintf("invalid configuration: %s", strings.Join(problems, "; ")))
	}
	return nil
}

func (c *Config) IngestBatchLimitInvalid() bool {
	return c.IngestLimit <= 0
}
