// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dlm.
//
// go-dlm is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the DLM configuration from YAML files and DLM_
// prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full DLM server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig configures the REST surface.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Auth           string        `mapstructure:"auth"` // none | bearer
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig configures the PostgreSQL catalog.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`

	// Physical table name overrides; empty selects the defaults.
	Tables TableOverrides `mapstructure:"tables"`
}

// TableOverrides renames the physical catalog tables.
type TableOverrides struct {
	Locations           string `mapstructure:"locations"`
	Storages            string `mapstructure:"storages"`
	StorageConfigs      string `mapstructure:"storage_configs"`
	DataItems           string `mapstructure:"data_items"`
	Migrations          string `mapstructure:"migrations"`
	PhaseChangeRequests string `mapstructure:"phase_change_requests"`
	Provenance          string `mapstructure:"provenance"`
}

// DSN renders the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// AgentConfig configures the transfer agent client.
type AgentConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`

	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
}

// MetadataConfig configures the optional metadata sink.
type MetadataConfig struct {
	URL string `mapstructure:"url"`
}

// IngestConfig configures ingest defaults.
type IngestConfig struct {
	UIDExpiration time.Duration `mapstructure:"uid_expiration"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads the configuration. path may be empty, in which case only the
// default search paths and environment variables apply. Values starting
// with "!" are treated as file indirections: the value is replaced with
// the trimmed content of the named file, so secrets never sit in the YAML.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dlm")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dlm")
	}

	v.SetEnvPrefix("DLM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		// No config file on the search path is fine: defaults and
		// environment variables carry the configuration.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := resolveSecrets(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.auth", "none")
	v.SetDefault("server.rate_limit_rps", 100.0)
	v.SetDefault("server.rate_limit_burst", 200)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "dlm")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "dlm")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("agent.url", "http://localhost:5572")
	v.SetDefault("agent.timeout", "1800s")
	v.SetDefault("agent.reconcile_interval", "5s")
	v.SetDefault("agent.sweep_interval", "2s")

	v.SetDefault("metadata.url", "")

	v.SetDefault("ingest.uid_expiration", "24h")

	v.SetDefault("logging.level", "info")
}

// resolveSecrets expands "!" file indirections in secret-bearing fields.
func resolveSecrets(cfg *Config) error {
	resolved, err := resolveSecret(cfg.Database.Password)
	if err != nil {
		return err
	}
	cfg.Database.Password = resolved
	return nil
}

func resolveSecret(value string) (string, error) {
	if !strings.HasPrefix(value, "!") {
		return value, nil
	}
	raw, err := os.ReadFile(strings.TrimPrefix(value, "!"))
	if err != nil {
		return "", fmt.Errorf("reading secret file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
