// Package config loads console configuration from an optional YAML file,
// QVET_ environment variables, and command-line flags, in that order of
// precedence (later layers win).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

type Config struct {
	API     APIConfig     `koanf:"api"`
	Listen  string        `koanf:"listen" validate:"required"`
	Journal JournalConfig `koanf:"journal"`
	Bank    BankConfig    `koanf:"bank"`
	Log     LogConfig     `koanf:"log"`
	Retry   RetryConfig   `koanf:"retry"`
}

type APIConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout"`
}

type JournalConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type BankConfig struct {
	CacheDir string `koanf:"cache_dir"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type RetryConfig struct {
	MaxAttempts    int           `koanf:"max_attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff"`
	BreakerEnabled bool          `koanf:"breaker_enabled"`
}

// Load reads configuration layers into a validated Config. path may be
// empty, in which case no file layer is loaded. flags may be nil; when
// given, only flags the user actually set override earlier layers.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// QVET_API__BASE_URL -> api.base_url: a double underscore separates
	// nesting levels so single underscores survive inside key names.
	err := k.Load(env.Provider("QVET_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "QVET_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load environment config: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flag config: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:8787"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = "qvet.db"
	}
	if cfg.Bank.CacheDir == "" {
		cfg.Bank.CacheDir = "banks"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
}
