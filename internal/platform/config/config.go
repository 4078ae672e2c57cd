package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingDiscordToken is returned when neither DISCORD_TOKEN nor its alias is set.
var ErrMissingDiscordToken = errors.New("DISCORD_TOKEN is required")

type Config struct {
	AppEnv              string `env:"APP_ENV" envDefault:"local"`
	DiscordToken        string `env:"DISCORD_TOKEN"`
	CommunityConfigPath string `env:"COMMUNITY_CONFIG_PATH" envDefault:"./config/communities.yaml"`
	HealthPort          int    `env:"HEALTH_PORT" envDefault:"8080"`

	// Classifier service
	ClassifierBaseURL      string        `env:"CLASSIFIER_BASE_URL"`
	ClassifierEmail        string        `env:"CLASSIFIER_EMAIL"`
	ClassifierClientID     string        `env:"CLASSIFIER_CLIENT_ID"`
	ClassifierTokenTTL     time.Duration `env:"CLASSIFIER_TOKEN_TTL" envDefault:"10m"`
	ClassifierRenewMargin  time.Duration `env:"CLASSIFIER_RENEW_MARGIN" envDefault:"30s"`
	ClassifierTimeout      time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"30s"`
	ClassifierTokenTimeout time.Duration `env:"CLASSIFIER_TOKEN_TIMEOUT" envDefault:"5s"`

	// Case store
	CaseStoreDir      string `env:"CASE_STORE_DIR" envDefault:"./data"`
	CaseStoreDSN      string `env:"CASE_STORE_DSN"`
	CaseStoreMaxConns int32  `env:"CASE_STORE_MAX_CONNS" envDefault:"5"`

	// Dedup cache
	DedupRedisURL   string        `env:"DEDUP_REDIS_URL"`
	DedupTTL        time.Duration `env:"DEDUP_TTL" envDefault:"10m"`
	DedupMaxEntries int           `env:"DEDUP_MAX_ENTRIES" envDefault:"1000"`

	// Media fetching
	DownloadTimeout time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"20s"`
	ResolveTimeout  time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"10s"`
	WebFetchRPS     float64       `env:"WEB_FETCH_RPS" envDefault:"5"`
	RejectedURLLog  string        `env:"REJECTED_URL_LOG" envDefault:"./data/logs/invalid-urls.log"`

	// Pipeline
	ScanConcurrency     int           `env:"SCAN_CONCURRENCY" envDefault:"4"`
	MaintenanceInterval time.Duration `env:"MAINTENANCE_INTERVAL" envDefault:"1m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	applyLegacyAliases(cfg)

	if cfg.DiscordToken == "" {
		return nil, ErrMissingDiscordToken
	}

	return cfg, nil
}

// ClassifierEnabled reports whether a classifier endpoint is configured.
func (c *Config) ClassifierEnabled() bool {
	return strings.TrimSpace(c.ClassifierBaseURL) != ""
}

// applyLegacyAliases maps the older SCANNER_* and BOT_TOKEN names onto the current keys.
func applyLegacyAliases(cfg *Config) {
	if !hasEnv("DISCORD_TOKEN") {
		setStringFromEnv("BOT_TOKEN", &cfg.DiscordToken)
	}

	if !hasEnv("CLASSIFIER_BASE_URL") {
		setStringFromEnv("SCANNER_BASE_URL", &cfg.ClassifierBaseURL)
	}

	if !hasEnv("CLASSIFIER_EMAIL") {
		setStringFromEnv("SCANNER_EMAIL", &cfg.ClassifierEmail)
	}

	if !hasEnv("CLASSIFIER_CLIENT_ID") {
		setStringFromEnv("SCANNER_CLIENT_ID", &cfg.ClassifierClientID)
	}

	if !hasEnv("CLASSIFIER_TOKEN_TTL") {
		setMillisFromEnv("SCANNER_TOKEN_TTL_MS", &cfg.ClassifierTokenTTL)
	}
}

func hasEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func setStringFromEnv(key string, target *string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	val = strings.TrimSpace(val)
	if val == "" {
		return
	}

	*target = val
}

func setMillisFromEnv(key string, target *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil || parsed <= 0 {
		return
	}

	*target = time.Duration(parsed) * time.Millisecond
}
