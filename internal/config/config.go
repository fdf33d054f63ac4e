// Package config provides configuration loading for the opsintel CLI and
// scheduler daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	// SchedulePath is the YAML collection schedule file.
	SchedulePath string `mapstructure:"schedule_path"`

	// PollInterval is the scheduler tick cadence, as a duration string.
	PollInterval string `mapstructure:"poll_interval"`

	// Sources configuration
	Sources SourcesConfig `mapstructure:"sources"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// SourcesConfig holds per-source connection configuration.
type SourcesConfig struct {
	Ticketing TicketingConfig `mapstructure:"ticketing"`
	PatchMgmt PatchMgmtConfig `mapstructure:"patchmgmt"`
	AssetInv  AssetInvConfig  `mapstructure:"assetinv"`
}

// TicketingConfig holds the PSA ticketing PostgreSQL configuration.
type TicketingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Database       string `mapstructure:"database"`
	SSLMode        string `mapstructure:"sslmode"`
	RefreshCommand string `mapstructure:"refresh_command"`
	StalenessDays  int    `mapstructure:"staleness_days"`
}

// PatchMgmtConfig holds the patch management SQLite file configuration.
type PatchMgmtConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Path           string `mapstructure:"path"`
	RefreshCommand string `mapstructure:"refresh_command"`
	StalenessDays  int    `mapstructure:"staleness_days"`
}

// AssetInvConfig holds the asset inventory DuckDB file configuration.
type AssetInvConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Path           string `mapstructure:"path"`
	RefreshCommand string `mapstructure:"refresh_command"`
	StalenessDays  int    `mapstructure:"staleness_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with local-development defaults.
func DefaultConfig() *Config {
	return &Config{
		SchedulePath: "schedule.yaml",
		PollInterval: "1m",
		Sources: SourcesConfig{
			Ticketing: TicketingConfig{
				Enabled:  true,
				Host:     "localhost",
				Port:     5432,
				User:     "opsintel",
				Password: "opsintel_dev",
				Database: "ticketing",
				SSLMode:  "disable",
			},
			PatchMgmt: PatchMgmtConfig{
				Enabled: true,
				Path:    "pmp_config.db",
			},
			AssetInv: AssetInvConfig{
				Enabled: false,
				Path:    "assets.duckdb",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".opsintel"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("OPSINTEL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("schedule_path", "schedule.yaml")
	v.SetDefault("poll_interval", "1m")
	v.SetDefault("sources.ticketing.enabled", true)
	v.SetDefault("sources.ticketing.host", "localhost")
	v.SetDefault("sources.ticketing.port", 5432)
	v.SetDefault("sources.ticketing.user", "opsintel")
	v.SetDefault("sources.ticketing.password", "opsintel_dev")
	v.SetDefault("sources.ticketing.database", "ticketing")
	v.SetDefault("sources.ticketing.sslmode", "disable")
	v.SetDefault("sources.patchmgmt.enabled", true)
	v.SetDefault("sources.patchmgmt.path", "pmp_config.db")
	v.SetDefault("sources.assetinv.enabled", false)
	v.SetDefault("sources.assetinv.path", "assets.duckdb")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
