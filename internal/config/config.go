// Package config loads the per-repository settings from .strata/config.*.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"github.com/spf13/viper"

	"github.com/jward/strata/internal/extract"
)

// CurrentVersion is the config schema version this build reads.
const CurrentVersion = 1

// Dir is the directory, relative to the analysis root, holding the config
// file and the default database.
const Dir = ".strata"

// Config is the repository configuration.
type Config struct {
	Version int `json:"version" mapstructure:"version"`
	// Workers bounds Phase A concurrency. Zero means one per CPU.
	Workers int    `json:"workers" mapstructure:"workers"`
	Mode    string `json:"mode" mapstructure:"mode"`

	// Ignore holds gitignore-style patterns excluded from discovery.
	Ignore     []string `json:"ignore" mapstructure:"ignore"`
	Extensions []string `json:"extensions" mapstructure:"extensions"`

	IgnoredNamespaces []string         `json:"ignoredNamespaces" mapstructure:"ignoredNamespaces"`
	IncludeDirs       []string         `json:"includeDirs" mapstructure:"includeDirs"`
	NonLakosianDirs   []string         `json:"nonLakosianDirs" mapstructure:"nonLakosianDirs"`
	ThirdParty        []ThirdPartyRule `json:"thirdParty" mapstructure:"thirdParty"`

	// CacheSize bounds the type-spelling normalization cache.
	CacheSize int `json:"cacheSize" mapstructure:"cacheSize"`

	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ThirdPartyRule maps file paths matching Pattern into the package group
// Group.
type ThirdPartyRule struct {
	Pattern string `json:"pattern" mapstructure:"pattern"`
	Group   string `json:"group" mapstructure:"group"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Version:           CurrentVersion,
		Workers:           runtime.NumCPU(),
		Mode:              "full",
		IgnoredNamespaces: append([]string(nil), extract.DefaultIgnoredNamespaces...),
		CacheSize:         4096,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads root/.strata/config.{json,yaml,toml}. A missing file
// yields DefaultConfig; keys absent from the file keep their defaults.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("version", def.Version)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("mode", def.Mode)
	v.SetDefault("ignoredNamespaces", def.IgnoredNamespaces)
	v.SetDefault("cacheSize", def.CacheSize)
	v.SetDefault("logging.level", def.Logging.Level)

	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(root, Dir))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return def, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to root/.strata/config.json.
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// Validate checks the configuration for values the engine cannot use.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "workers", Message: "must not be negative"}
	}
	if _, err := extract.ParseMode(c.Mode); err != nil {
		return &ConfigError{Field: "mode", Message: err.Error()}
	}
	if c.CacheSize < 0 {
		return &ConfigError{Field: "cacheSize", Message: "must not be negative"}
	}
	for i, r := range c.ThirdParty {
		if r.Group == "" {
			return &ConfigError{Field: fmt.Sprintf("thirdParty[%d].group", i), Message: "must not be empty"}
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return &ConfigError{Field: fmt.Sprintf("thirdParty[%d].pattern", i), Message: err.Error()}
		}
	}
	return nil
}

// ExtractOptions converts the extraction settings.
func (c *Config) ExtractOptions() (extract.Options, error) {
	opts := extract.Options{
		IgnoredNamespaces: c.IgnoredNamespaces,
		IncludeDirs:       c.IncludeDirs,
		NonLakosianDirs:   c.NonLakosianDirs,
		CacheSize:         c.CacheSize,
	}
	for i, r := range c.ThirdParty {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return extract.Options{}, &ConfigError{Field: fmt.Sprintf("thirdParty[%d].pattern", i), Message: err.Error()}
		}
		opts.ThirdParty = append(opts.ThirdParty, extract.ThirdPartyRule{Pattern: re, Group: r.Group})
	}
	return opts, nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
