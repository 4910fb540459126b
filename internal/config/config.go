// Package config centralises runtime configuration for credisync.
//
// Values come from, in increasing precedence: built-in defaults, an
// optional credisync.yaml config file, and CREDISYNC_* environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures runtime configuration for the replica and sync engine.
type Config struct {
	// DataDir holds the replica database (replica.db).
	DataDir string `mapstructure:"data_dir"`

	// RemoteURL is the base URL of the central store's REST surface.
	RemoteURL string `mapstructure:"remote_url"`
	// RemoteToken authenticates calls to the central store.
	RemoteToken string `mapstructure:"remote_token"`

	// TenantID is the tenant this device replicates.
	TenantID string `mapstructure:"tenant_id"`

	SyncInterval time.Duration `mapstructure:"sync_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`

	// JWTSecret and JWTIssuer verify principals handed in by the
	// identity provider.
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`

	// MetricsAddr serves prometheus metrics in daemon mode; empty
	// disables the listener.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// LogFile receives daemon logs with rotation; empty logs to stderr.
	LogFile string `mapstructure:"log_file"`
}

// Load reads configuration from defaults, an optional config file, and
// the environment. A missing config file is fine; a malformed one is not.
func Load(path string) (*Config, error) {
	// Binding env vars to struct fields during Unmarshal is the default
	// from viper 1.21; on 1.20 it must be enabled explicitly.
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())

	v.SetDefault("data_dir", ".credisync")
	v.SetDefault("sync_interval", 5*time.Minute)
	v.SetDefault("batch_size", 50)
	v.SetDefault("batch_timeout", 30*time.Second)
	v.SetDefault("jwt_issuer", "credisync.identity")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("credisync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("credisync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
