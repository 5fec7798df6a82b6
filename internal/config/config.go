// Package config loads runtime configuration for rlm: resource caps, agent
// budgets, and server settings, from built-in defaults, an optional
// rlm.yaml file, and RLM_*-prefixed environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for rlm: resource caps, agent
// budgets, and server settings. Values are populated from rlm.yaml, flat
// RLM_* env vars (e.g. RLM_MAX_OUTPUT_CHARS, RLM_MAX_ITERATIONS), and CLI
// flags, in that ascending precedence.
type Config struct {
	MaxOutputChars     int    `mapstructure:"max_output_chars"`
	MaxPrintStateChars int    `mapstructure:"max_print_state_chars"`
	MaxRangeLen        int    `mapstructure:"max_range_len"`
	MaxLoopIterations  int    `mapstructure:"max_loop_iterations"`
	MaxCallDepth       int    `mapstructure:"max_call_depth"`
	MaxZlibOutputBytes int    `mapstructure:"max_zlib_output_bytes"`
	MaxIterations      int    `mapstructure:"max_iterations"`
	MaxRetries         int    `mapstructure:"max_retries"`
	MaxJSONRepair      int    `mapstructure:"max_json_repair"`
	RequestTimeout     string `mapstructure:"request_timeout"`
	Model              string `mapstructure:"model"`
	ServerAddr         string `mapstructure:"server_addr"`
	Verbose            bool   `mapstructure:"verbose"`
}

func setDefaults() {
	viper.SetDefault("max_output_chars", 2000)
	viper.SetDefault("max_print_state_chars", 100000)
	viper.SetDefault("max_range_len", 5000)
	viper.SetDefault("max_loop_iterations", 100000)
	viper.SetDefault("max_call_depth", 64)
	viper.SetDefault("max_zlib_output_bytes", 1000000)

	viper.SetDefault("max_iterations", 20)
	viper.SetDefault("max_retries", 5)
	viper.SetDefault("max_json_repair", 2)
	viper.SetDefault("request_timeout", "90s")
	viper.SetDefault("model", "gpt-5.2")

	viper.SetDefault("server_addr", ":8080")

	viper.SetDefault("verbose", false)

	viper.SetEnvPrefix("RLM")
	viper.AutomaticEnv()
}

// Load reads configuration from viper, applying built-in defaults (matching
// spec.md §5's resource-cap table) for any value not set by environment or
// flags. No config file is read; use LoadFromFile for that.
func Load() (Config, error) {
	setDefaults()
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile reads configuration from the rlm.yaml (or .json/.toml) at
// path, layering it under defaults and RLM_* environment overrides, and
// leaves the file registered with viper so WatchReload can hot-reload it.
func LoadFromFile(path string) (Config, error) {
	setDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// RequestTimeoutDuration parses RequestTimeout ("90s"-style) into a
// time.Duration.
func (c Config) RequestTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("parse request_timeout %q: %w", c.RequestTimeout, err)
	}
	return d, nil
}

// WatchReload hot-reloads resource caps from rlm.yaml without a restart.
// It is a no-op if no config file was found by viper.ReadInConfig. onChange
// receives the freshly unmarshaled Config after each file write.
func WatchReload(onChange func(Config)) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(fsnotify.Event) {
		var cfg Config
		if err := viper.Unmarshal(&cfg); err == nil {
			onChange(cfg)
		}
	})
	viper.WatchConfig()
}
