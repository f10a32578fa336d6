// Package config handles configuration loading for finsheet.
// It supports YAML config files, an optional .env file and environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FINSHEET_API_PORT.
const EnvPrefix = "FINSHEET"

// Config represents the complete application configuration.
type Config struct {
	CIQ      CIQConfig      `mapstructure:"ciq"      json:"ciq" yaml:"ciq"`
	Pipeline PipelineConfig `mapstructure:"pipeline" json:"pipeline" yaml:"pipeline"`
	Store    StoreConfig    `mapstructure:"store"    json:"store" yaml:"store"`
	API      APIConfig      `mapstructure:"api"      json:"api" yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  json:"logging" yaml:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"  json:"tracing" yaml:"tracing"`
}

// CIQConfig holds Capital IQ transport settings.
type CIQConfig struct {
	BaseURL           string `mapstructure:"base_url"            json:"base_url" yaml:"base_url"            validate:"omitempty,url"`
	Username          string `mapstructure:"username"            json:"-" yaml:"username"`
	Password          string `mapstructure:"password"            json:"-" yaml:"password"`
	TimeoutSec        int    `mapstructure:"timeout_sec"         json:"timeout_sec" yaml:"timeout_sec"         validate:"min=1,max=600"`
	BatchSize         int    `mapstructure:"batch_size"          json:"batch_size" yaml:"batch_size"          validate:"min=1,max=100"`
	RequestsPerSecond int    `mapstructure:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second" validate:"min=0"`
}

// PipelineConfig holds normalization defaults.
type PipelineConfig struct {
	Years        int   `mapstructure:"years"         json:"years" yaml:"years"         validate:"min=1,max=30"`
	ForwardYears int   `mapstructure:"forward_years" json:"forward_years" yaml:"forward_years" validate:"min=0,max=10"`
	MAWindows    []int `mapstructure:"ma_windows"    json:"ma_windows" yaml:"ma_windows"    validate:"dive,min=1"`
	TrendWindow  int   `mapstructure:"trend_window"  json:"trend_window" yaml:"trend_window"  validate:"min=1"`
	EnableRatios bool  `mapstructure:"enable_ratios" json:"enable_ratios" yaml:"enable_ratios"`
	EnableTrend  bool  `mapstructure:"enable_trend"  json:"enable_trend" yaml:"enable_trend"`
}

// StoreConfig holds snapshot store settings.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    json:"path" yaml:"path"    validate:"required_if=Enabled true"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         json:"host" yaml:"host"`
	Port        int      `mapstructure:"port"         json:"port" yaml:"port"         validate:"min=1,max=65535"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  json:"level" yaml:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" json:"format" yaml:"format" validate:"oneof=console json"`
}

// TracingConfig toggles span export to stdout.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.finsheet/config.yaml (home directory)
//  3. /etc/finsheet/config.yaml (system)
//
// A .env file in the working directory is loaded first, without replacing
// variables already set. Environment variables override config file values.
// Format: FINSHEET_<SECTION>_<KEY>, e.g., FINSHEET_PIPELINE_YEARS.
func Load() (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".finsheet"))
	v.AddConfigPath("/etc/finsheet")

	// Config file not found is fine: defaults + env vars apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the built-in defaults with environment overrides applied
// and no config file. The result is not validated.
func Default() *Config {
	var cfg Config
	_ = newViper().Unmarshal(&cfg)
	overrideFromEnv(&cfg)
	return &cfg
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// CIQ defaults
	v.SetDefault("ciq.base_url", "https://api-ciq.marketintelligence.spglobal.com")
	v.SetDefault("ciq.username", "")
	v.SetDefault("ciq.password", "")
	v.SetDefault("ciq.timeout_sec", 30)
	v.SetDefault("ciq.batch_size", 100)
	v.SetDefault("ciq.requests_per_second", 5)

	// Pipeline defaults
	v.SetDefault("pipeline.years", 5)
	v.SetDefault("pipeline.forward_years", 0)
	v.SetDefault("pipeline.ma_windows", []int{3})
	v.SetDefault("pipeline.trend_window", 3)
	v.SetDefault("pipeline.enable_ratios", true)
	v.SetDefault("pipeline.enable_trend", true)

	// Store defaults
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", filepath.Join(homeDir(), ".finsheet", "finsheet.db"))

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("tracing.enabled", false)
}

// overrideFromEnv reads the credential variables shared with other tools,
// which carry no FINSHEET_ prefix.
func overrideFromEnv(cfg *Config) {
	if user := os.Getenv("CIQ_USER"); user != "" {
		cfg.CIQ.Username = user
	}
	if pass := os.Getenv("CIQ_PASS"); pass != "" {
		cfg.CIQ.Password = pass
	}
}

// loadDotEnv loads ./.env if present. Existing variables win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
