package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, e := range []string{"CIQ_USER", "CIQ_PASS", "FINSHEET_CIQ_USERNAME", "FINSHEET_CIQ_PASSWORD", "FINSHEET_PIPELINE_YEARS"} {
		t.Setenv(e, "")
		os.Unsetenv(e)
	}
}

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// CIQ defaults
	if cfg.CIQ.BaseURL != "https://api-ciq.marketintelligence.spglobal.com" {
		t.Errorf("CIQ.BaseURL: got %q", cfg.CIQ.BaseURL)
	}
	if cfg.CIQ.TimeoutSec != 30 {
		t.Errorf("CIQ.TimeoutSec: got %d, want 30", cfg.CIQ.TimeoutSec)
	}
	if cfg.CIQ.BatchSize != 100 {
		t.Errorf("CIQ.BatchSize: got %d, want 100", cfg.CIQ.BatchSize)
	}

	// Pipeline defaults
	if cfg.Pipeline.Years != 5 {
		t.Errorf("Pipeline.Years: got %d, want 5", cfg.Pipeline.Years)
	}
	if cfg.Pipeline.ForwardYears != 0 {
		t.Errorf("Pipeline.ForwardYears: got %d, want 0", cfg.Pipeline.ForwardYears)
	}
	if len(cfg.Pipeline.MAWindows) != 1 || cfg.Pipeline.MAWindows[0] != 3 {
		t.Errorf("Pipeline.MAWindows: got %v, want [3]", cfg.Pipeline.MAWindows)
	}
	if cfg.Pipeline.TrendWindow != 3 {
		t.Errorf("Pipeline.TrendWindow: got %d, want 3", cfg.Pipeline.TrendWindow)
	}
	if !cfg.Pipeline.EnableRatios || !cfg.Pipeline.EnableTrend {
		t.Error("ratios and trend should be enabled by default")
	}

	// Store defaults
	if cfg.Store.Enabled {
		t.Error("Store.Enabled should be false by default")
	}
	if cfg.Store.Path == "" {
		t.Error("Store.Path should have a default")
	}

	// API defaults
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host: got %q, want %q", cfg.API.Host, "0.0.0.0")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}
	if len(cfg.API.CORSOrigins) != 1 || cfg.API.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("API.CORSOrigins: got %v", cfg.API.CORSOrigins)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "console")
	}
	if cfg.Tracing.Enabled {
		t.Error("Tracing.Enabled should be false by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	content := `
ciq:
  username: analyst@example.com
  batch_size: 50
pipeline:
  years: 8
  forward_years: 2
  ma_windows: [3, 5]
api:
  port: 9090
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile error: %v", err)
	}

	if cfg.CIQ.Username != "analyst@example.com" {
		t.Errorf("CIQ.Username: got %q", cfg.CIQ.Username)
	}
	if cfg.CIQ.BatchSize != 50 {
		t.Errorf("CIQ.BatchSize: got %d, want 50", cfg.CIQ.BatchSize)
	}
	if cfg.Pipeline.Years != 8 || cfg.Pipeline.ForwardYears != 2 {
		t.Errorf("Pipeline: got %+v", cfg.Pipeline)
	}
	if len(cfg.Pipeline.MAWindows) != 2 || cfg.Pipeline.MAWindows[1] != 5 {
		t.Errorf("Pipeline.MAWindows: got %v", cfg.Pipeline.MAWindows)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
	// Unset values keep defaults.
	if cfg.CIQ.TimeoutSec != 30 {
		t.Errorf("CIQ.TimeoutSec: got %d, want default 30", cfg.CIQ.TimeoutSec)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent config file")
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
	}{
		{"batch too large", "ciq:\n  batch_size: 500\n"},
		{"zero years", "pipeline:\n  years: 0\n"},
		{"bad log format", "logging:\n  format: xml\n"},
		{"zero ma window", "pipeline:\n  ma_windows: [0]\n"},
		{"store without path", "store:\n  enabled: true\n  path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFromFile(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("CIQ_USER", "env-user@example.com")
	t.Setenv("CIQ_PASS", "env-password")
	t.Setenv("FINSHEET_PIPELINE_YEARS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.CIQ.Username != "env-user@example.com" || cfg.CIQ.Password != "env-password" {
		t.Errorf("CIQ creds: got %q / %q", cfg.CIQ.Username, cfg.CIQ.Password)
	}
	if cfg.Pipeline.Years != 7 {
		t.Errorf("Pipeline.Years: got %d, want 7", cfg.Pipeline.Years)
	}
}

func TestDotEnvLoaded(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CIQ_USER=dotenv-user\nCIQ_PASS=dotenv-pass\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("CIQ_USER")
		os.Unsetenv("CIQ_PASS")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.CIQ.Username != "dotenv-user" || cfg.CIQ.Password != "dotenv-pass" {
		t.Errorf("CIQ creds from .env: got %q / %q", cfg.CIQ.Username, cfg.CIQ.Password)
	}
}

func TestDefault(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	if cfg.Pipeline.Years != 5 || cfg.CIQ.BatchSize != 100 {
		t.Errorf("Default: got %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

// ── Keys ──

func TestMaskKeyShort(t *testing.T) {
	tests := []string{"", "a", "abcdefgh"}
	for _, k := range tests {
		if got := maskKey(k); got != "***" {
			t.Errorf("maskKey(%q) = %q, want ***", k, got)
		}
	}
}

func TestMaskKeyLong(t *testing.T) {
	if got := maskKey("analyst@example.com"); got != "ana...com" {
		t.Errorf("maskKey = %q, want ana...com", got)
	}
}

func TestCheckAPIKeysAllEmpty(t *testing.T) {
	clearEnv(t)
	keys := CheckAPIKeys(&Config{})
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	for _, k := range keys {
		if k.IsSet || k.Source != KeySourceNone || k.Masked != "" {
			t.Errorf("%s: got %+v", k.Name, k)
		}
	}
	if HasCIQCredentials(&Config{}) {
		t.Error("empty config has no credentials")
	}
}

func TestCheckAPIKeysFromConfig(t *testing.T) {
	clearEnv(t)
	cfg := &Config{}
	cfg.CIQ.Username = "analyst@example.com"
	cfg.CIQ.Password = "long-secret-password"

	keys := CheckAPIKeys(cfg)
	for _, k := range keys {
		if !k.IsSet || k.Source != KeySourceConfig {
			t.Errorf("%s: got %+v", k.Name, k)
		}
	}
	if keys[0].Masked != "ana...com" {
		t.Errorf("masked username = %q", keys[0].Masked)
	}
	if !HasCIQCredentials(cfg) {
		t.Error("expected credentials to be present")
	}
}

func TestCheckAPIKeysFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CIQ_USER", "analyst@example.com")
	cfg := &Config{}
	cfg.CIQ.Username = "analyst@example.com"

	keys := CheckAPIKeys(cfg)
	if keys[0].Source != KeySourceEnv {
		t.Errorf("username source = %q, want env", keys[0].Source)
	}
	if keys[1].Source != KeySourceNone {
		t.Errorf("password source = %q, want none", keys[1].Source)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
