package config

import (
	"errors"
	"os"
	"strings"
	"testing"
)

// unsetenv clears a variable for the duration of the test. t.Setenv registers
// the restore; envconfig only falls back to tag defaults when the variable is
// truly absent, not when it is set to the empty string.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("PORT", "8080")
	t.Setenv("PIPELINE_QUERY_FANOUT", "3")
	unsetenv(t, "DEFAULT_STATE")
	unsetenv(t, "DEFAULT_COUNTRY")
	unsetenv(t, "CLOUDWATCH_NAMESPACE")
	unsetenv(t, "PIPELINE_EXPLORATION")
	t.Setenv("ARCHIVE_QUEUE_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Environment != "local" || !cfg.IsLocal() {
		t.Errorf("Environment = %q, IsLocal = %v", cfg.Environment, cfg.IsLocal())
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Region.State != "Tamil Nadu" || cfg.Region.Country != "India" {
		t.Errorf("Region = %+v, want Tamil Nadu / India defaults", cfg.Region)
	}
	if cfg.Pipeline.QueryFanOut != 3 {
		t.Errorf("Pipeline.QueryFanOut = %d, want 3", cfg.Pipeline.QueryFanOut)
	}
	if cfg.Pipeline.Exploration {
		t.Error("Pipeline.Exploration should default to false")
	}
	if cfg.External.OverpassURL == "" || cfg.External.NominatimURL == "" {
		t.Errorf("External endpoints missing defaults: %+v", cfg.External)
	}
	if cfg.AWS.MetricNamespace != "VoltSite" {
		t.Errorf("AWS.MetricNamespace = %q, want VoltSite", cfg.AWS.MetricNamespace)
	}
	if cfg.Database.URL != "" {
		t.Errorf("Database.URL = %q, want empty (persistence disabled)", cfg.Database.URL)
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_STATE", "Karnataka")
	t.Setenv("PIPELINE_EXPLORATION", "true")
	t.Setenv("ARCHIVE_QUEUE_URL", "https://sqs.test/archive")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Environment != "prod" || cfg.IsLocal() {
		t.Errorf("Environment = %q, IsLocal = %v", cfg.Environment, cfg.IsLocal())
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Region.State != "Karnataka" {
		t.Errorf("Region.State = %q, want Karnataka", cfg.Region.State)
	}
	if !cfg.Pipeline.Exploration {
		t.Error("Pipeline.Exploration should be enabled")
	}
	if cfg.AWS.ArchiveQueueURL != "https://sqs.test/archive" {
		t.Errorf("AWS.ArchiveQueueURL = %q", cfg.AWS.ArchiveQueueURL)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	t.Setenv("APP_ENV", "production") // not in the allowed set

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected validation error for APP_ENV=production")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if cfgErr.Type != ErrValidation {
		t.Errorf("error type = %q, want %q", cfgErr.Type, ErrValidation)
	}
}

func TestLoadConfig_ParsingFailure(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("PORT", "not-a-number")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected parsing error for non-numeric PORT")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if cfgErr.Type != ErrParsing {
		t.Errorf("error type = %q, want %q", cfgErr.Type, ErrParsing)
	}
}

func TestConfigError_Format(t *testing.T) {
	underlying := errors.New("boom")
	err := &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: underlying}

	if !strings.Contains(err.Error(), "[validation]") {
		t.Errorf("Error() = %q, want type tag", err.Error())
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Error() = %q, want underlying message", err.Error())
	}
	if !errors.Is(err, underlying) {
		t.Error("expected Unwrap to expose the underlying error")
	}

	bare := &ConfigError{Type: ErrParsing, Message: "no underlying"}
	if strings.Contains(bare.Error(), "<nil>") {
		t.Errorf("Error() without cause = %q, should omit nil error", bare.Error())
	}
}
