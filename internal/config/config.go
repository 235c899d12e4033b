// Package config loads runtime configuration for the sheetsync CLI from
// defaults, environment variables (SHEETSYNC_*), and bound flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "SHEETSYNC"
	defaultDatabasePath = "sheets.db"
	defaultLogLevel     = "info"
	defaultSyncInterval = 5 * time.Minute
	defaultHTTPTimeout  = 15 * time.Second
)

// AppConfig captures runtime configuration for the client.
type AppConfig struct {
	DatabasePath string
	APIBaseURL   string
	OwnerID      string
	SyncInterval time.Duration
	HTTPTimeout  time.Duration
	LogLevel     string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("api.base_url", "")
	configViper.SetDefault("api.timeout", defaultHTTPTimeout)
	configViper.SetDefault("owner.id", "")
	configViper.SetDefault("sync.interval", defaultSyncInterval)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// ReadFile merges an optional config file into the viper instance. An empty
// path is a no-op; a named file that cannot be read is an error.
func ReadFile(configViper *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	configViper.SetConfigFile(path)
	if err := configViper.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DatabasePath: configViper.GetString("database.path"),
		APIBaseURL:   configViper.GetString("api.base_url"),
		OwnerID:      configViper.GetString("owner.id"),
		SyncInterval: configViper.GetDuration("sync.interval"),
		HTTPTimeout:  configViper.GetDuration("api.timeout"),
		LogLevel:     configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if strings.TrimSpace(c.OwnerID) == "" {
		return fmt.Errorf("owner.id is required")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}
	return nil
}
