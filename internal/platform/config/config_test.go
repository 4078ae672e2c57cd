package config

import (
	"os"
	"testing"
	"time"
)

// Test environment variable keys.
const (
	testEnvDiscordToken = "DISCORD_TOKEN"
	testEnvBotToken     = "BOT_TOKEN"
	testEnvBaseURL      = "CLASSIFIER_BASE_URL"
	testEnvLegacyURL    = "SCANNER_BASE_URL"
	testEnvLegacyTTL    = "SCANNER_TOKEN_TTL_MS"
)

// Test values.
const (
	testDiscordToken = "discord-token"
	testErrLoad      = "Load() error = %v"
	testDefaultEnv   = "local"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_MissingToken(t *testing.T) {
	unsetEnv(t, testEnvDiscordToken, testEnvBotToken)

	_, err := Load()
	if err == nil {
		t.Error("expected error for missing DISCORD_TOKEN")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(testEnvDiscordToken, testDiscordToken)
	unsetEnv(t, "APP_ENV", "HEALTH_PORT", "CLASSIFIER_TOKEN_TTL", "DEDUP_TTL", "DEDUP_MAX_ENTRIES", testEnvLegacyTTL)

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.AppEnv != testDefaultEnv {
		t.Errorf("AppEnv default = %q, want %q", cfg.AppEnv, testDefaultEnv)
	}

	if cfg.HealthPort != 8080 {
		t.Errorf("HealthPort default = %d, want %d", cfg.HealthPort, 8080)
	}

	if cfg.ClassifierTokenTTL != 10*time.Minute {
		t.Errorf("ClassifierTokenTTL default = %v, want %v", cfg.ClassifierTokenTTL, 10*time.Minute)
	}

	if cfg.DedupTTL != 10*time.Minute {
		t.Errorf("DedupTTL default = %v, want %v", cfg.DedupTTL, 10*time.Minute)
	}

	if cfg.DedupMaxEntries != 1000 {
		t.Errorf("DedupMaxEntries default = %d, want %d", cfg.DedupMaxEntries, 1000)
	}
}

func TestLoad_LegacyAliases(t *testing.T) {
	unsetEnv(t, testEnvDiscordToken, testEnvBaseURL, "CLASSIFIER_TOKEN_TTL")
	t.Setenv(testEnvBotToken, testDiscordToken)
	t.Setenv(testEnvLegacyURL, "http://scanner.local")
	t.Setenv(testEnvLegacyTTL, "120000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.DiscordToken != testDiscordToken {
		t.Errorf("DiscordToken = %q, want %q", cfg.DiscordToken, testDiscordToken)
	}

	if cfg.ClassifierBaseURL != "http://scanner.local" {
		t.Errorf("ClassifierBaseURL = %q, want alias value", cfg.ClassifierBaseURL)
	}

	if cfg.ClassifierTokenTTL != 2*time.Minute {
		t.Errorf("ClassifierTokenTTL = %v, want %v", cfg.ClassifierTokenTTL, 2*time.Minute)
	}

	if !cfg.ClassifierEnabled() {
		t.Error("ClassifierEnabled() should be true when a base URL is set")
	}
}

func TestLoad_PrimaryKeyWinsOverAlias(t *testing.T) {
	t.Setenv(testEnvDiscordToken, testDiscordToken)
	t.Setenv(testEnvBaseURL, "http://primary")
	t.Setenv(testEnvLegacyURL, "http://legacy")

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.ClassifierBaseURL != "http://primary" {
		t.Errorf("ClassifierBaseURL = %q, want %q", cfg.ClassifierBaseURL, "http://primary")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv(testEnvDiscordToken, testDiscordToken)
	t.Setenv("DEDUP_TTL", "not-a-duration")

	_, err := Load()
	if err == nil {
		t.Error("expected error for invalid DEDUP_TTL")
	}
}
