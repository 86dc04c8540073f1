// Package config loads process configuration from PROJECTLOG_* environment
// variables, optionally overlaid by a YAML file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	perrors "github.com/p-blackswan/projectlog/internal/errors"
)

// Prefix is the environment variable prefix.
const Prefix = "PROJECTLOG"

// Config holds all application configuration.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development" yaml:"environment"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" yaml:"log_level"`

	// DBPath is the SQLite file holding the event log and the read model.
	DBPath string `envconfig:"DB_PATH" default:".projectlog/events.db" yaml:"db_path"`

	// ChainingEnabled allows add to link a new goal after an existing one.
	ChainingEnabled bool `envconfig:"CHAINING_ENABLED" default:"true" yaml:"chaining_enabled"`

	// ConfigFile is an optional YAML overlay; it is not read from the file itself.
	ConfigFile string `envconfig:"CONFIG_FILE" yaml:"-"`
}

// fileConfig mirrors Config with pointers so an absent key keeps the
// env/default value.
type fileConfig struct {
	Environment     *string `yaml:"environment"`
	LogLevel        *string `yaml:"log_level"`
	DBPath          *string `yaml:"db_path"`
	ChainingEnabled *bool   `yaml:"chaining_enabled"`
}

// IsDevelopment reports whether human-readable logs should be used.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Validate rejects values the process cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return perrors.NewConfigError("db path is empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return perrors.NewConfigError("unknown log level %q", c.LogLevel)
	}
	return nil
}

// Load reads configuration from the environment, applies the YAML file named
// by PROJECTLOG_CONFIG_FILE if any, and validates the result.
func Load() (*Config, error) {
	return LoadWithPrefix(Prefix)
}

// LoadWithPrefix is Load with a custom environment prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	if cfg.ConfigFile != "" {
		raw, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", cfg.ConfigFile, err)
		}
		if err := cfg.Overlay(raw); err != nil {
			return nil, fmt.Errorf("config: %s: %w", cfg.ConfigFile, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Overlay applies the keys present in a YAML document on top of c.
// ${VAR} and $VAR references are expanded before parsing.
func (c *Config) Overlay(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &fc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if fc.Environment != nil {
		c.Environment = *fc.Environment
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.DBPath != nil {
		c.DBPath = *fc.DBPath
	}
	if fc.ChainingEnabled != nil {
		c.ChainingEnabled = *fc.ChainingEnabled
	}
	return nil
}

// envVarPattern matches ${VAR_NAME} and $VAR_NAME.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR} and $VAR with the environment value. Missing
// vars become the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "${")
		name = strings.TrimSuffix(name, "}")
		name = strings.TrimPrefix(name, "$")
		return os.Getenv(name)
	})
}
