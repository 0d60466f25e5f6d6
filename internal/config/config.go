// Package config loads application configuration from file, .env and
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is the application version, set at build time.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	EPG      EPGConfig      `mapstructure:"epg"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SourcesConfig holds source registry and sync configuration.
type SourcesConfig struct {
	// BootstrapFile optionally seeds the registry on first start.
	BootstrapFile string `mapstructure:"bootstrap_file"`
	// SyncInterval is how often active sources are re-ingested.
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

// EPGConfig holds program guide cache configuration.
type EPGConfig struct {
	// Endpoint is the XMLTV guide endpoint, queried per channel.
	Endpoint      string        `mapstructure:"endpoint"`
	TTL           time.Duration `mapstructure:"ttl"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8591,
		},
		Database: DatabaseConfig{
			Path: "./data/streamweld.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Sources: SourcesConfig{
			SyncInterval: 6 * time.Hour,
		},
		EPG: EPGConfig{
			TTL:           30 * time.Minute,
			Retention:     24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > .env file > config file > defaults
func Load(configPath string) (*Config, error) {
	// Best effort: a missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.streamweld")
	}

	v.SetEnvPrefix("STREAMWELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)

	v.SetDefault("database.path", def.Database.Path)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)

	v.SetDefault("sources.bootstrap_file", "")
	v.SetDefault("sources.sync_interval", def.Sources.SyncInterval)

	v.SetDefault("epg.endpoint", "")
	v.SetDefault("epg.ttl", def.EPG.TTL)
	v.SetDefault("epg.retention", def.EPG.Retention)
	v.SetDefault("epg.sweep_interval", def.EPG.SweepInterval)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
