// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (GLTF_MCP_* runtime override)
//  2. Config file (~/.gltf-mcp/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Engines: paths to the external processing binaries
//   - Execution: per-step timeout and process concurrency bound
//   - Cache: key capacity and per-domain TTLs
//   - Log: level and format
//
// Validation is fail-fast with sentinel errors for errors.Is() checks.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingEngine indicates an engine binary name is empty.
	ErrMissingEngine = errors.New("missing engine binary")

	// ErrInvalidTimeout indicates the execution timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid execution timeout")

	// ErrInvalidConcurrency indicates the process concurrency bound is out of range.
	ErrInvalidConcurrency = errors.New("invalid process concurrency")

	// ErrInvalidCacheKeys indicates the cache key capacity is out of range.
	ErrInvalidCacheKeys = errors.New("invalid cache key capacity")

	// ErrInvalidTTL indicates a cache TTL is out of range.
	ErrInvalidTTL = errors.New("invalid cache TTL")
)

const (
	// DefaultTransformBin is the transform/optimization engine binary.
	DefaultTransformBin = "gltf-transform"

	// DefaultPipelineBin is the conversion pipeline engine binary.
	DefaultPipelineBin = "gltf-pipeline"

	// MaxExecTimeout is the largest accepted per-step timeout.
	// Transform runs on production assets can be slow, but anything beyond
	// an hour indicates a hung child process, not work.
	MaxExecTimeout = 3600
)

// Config stores application configuration.
type Config struct {
	// Engine binaries (name on PATH or absolute path)
	TransformBin string `mapstructure:"transform_bin" json:"transform_bin"`
	PipelineBin  string `mapstructure:"pipeline_bin" json:"pipeline_bin"`

	// Execution limits
	ExecTimeoutSeconds int   `mapstructure:"exec_timeout_seconds" json:"exec_timeout_seconds"`
	MaxProcesses       int64 `mapstructure:"max_processes" json:"max_processes"`

	// Cache configuration
	CacheMaxKeys         uint64 `mapstructure:"cache_max_keys" json:"cache_max_keys"`
	ValidationTTLMinutes int    `mapstructure:"validation_ttl_minutes" json:"validation_ttl_minutes"`
	TransformTTLMinutes  int    `mapstructure:"transform_ttl_minutes" json:"transform_ttl_minutes"`
	AnalysisTTLMinutes   int    `mapstructure:"analysis_ttl_minutes" json:"analysis_ttl_minutes"`

	// Directories requests may reference in addition to the working
	// directory. Empty means working directory only.
	AllowedDirs []string `mapstructure:"allowed_dirs" json:"allowed_dirs"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".gltf-mcp")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("GLTF_MCP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transform_bin", DefaultTransformBin)
	v.SetDefault("pipeline_bin", DefaultPipelineBin)

	v.SetDefault("exec_timeout_seconds", 300)
	v.SetDefault("max_processes", 4)

	v.SetDefault("cache_max_keys", 1000)
	v.SetDefault("validation_ttl_minutes", 30)
	v.SetDefault("transform_ttl_minutes", 60)
	v.SetDefault("analysis_ttl_minutes", 60)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Validate checks all configuration values. Fail-fast: the first violation
// is returned wrapped around its sentinel error.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.TransformBin == "" {
		return fmt.Errorf("%w: transform_bin", ErrMissingEngine)
	}
	if c.PipelineBin == "" {
		return fmt.Errorf("%w: pipeline_bin", ErrMissingEngine)
	}
	if c.ExecTimeoutSeconds < 1 || c.ExecTimeoutSeconds > MaxExecTimeout {
		return fmt.Errorf("%w: %d (must be 1..%d seconds)", ErrInvalidTimeout, c.ExecTimeoutSeconds, MaxExecTimeout)
	}
	if c.MaxProcesses < 1 || c.MaxProcesses > 64 {
		return fmt.Errorf("%w: %d (must be 1..64)", ErrInvalidConcurrency, c.MaxProcesses)
	}
	if c.CacheMaxKeys < 1 {
		return fmt.Errorf("%w: %d (must be >= 1)", ErrInvalidCacheKeys, c.CacheMaxKeys)
	}
	for name, minutes := range map[string]int{
		"validation_ttl_minutes": c.ValidationTTLMinutes,
		"transform_ttl_minutes":  c.TransformTTLMinutes,
		"analysis_ttl_minutes":   c.AnalysisTTLMinutes,
	} {
		if minutes < 1 || minutes > 24*60 {
			return fmt.Errorf("%w: %s=%d (must be 1..1440)", ErrInvalidTTL, name, minutes)
		}
	}
	return nil
}

// ExecTimeout returns the per-step execution timeout as a duration.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.ExecTimeoutSeconds) * time.Second
}

// ValidationTTL returns the validation result cache TTL.
func (c *Config) ValidationTTL() time.Duration {
	return time.Duration(c.ValidationTTLMinutes) * time.Minute
}

// TransformTTL returns the transform result cache TTL.
func (c *Config) TransformTTL() time.Duration {
	return time.Duration(c.TransformTTLMinutes) * time.Minute
}

// AnalysisTTL returns the analysis result cache TTL.
func (c *Config) AnalysisTTL() time.Duration {
	return time.Duration(c.AnalysisTTLMinutes) * time.Minute
}
