package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port int
	}
	Database struct {
		Path string
	}
	Kafka struct {
		Enabled bool
		Brokers []string
		Topic   string
		GroupID string
	}
	Notify struct {
		SlackToken     string
		SMTPHost       string
		SMTPPort       int
		EmailFrom      string
		EmailPassword  string
		TimeoutSeconds int
	}
	Engine struct {
		WindowRetentionMinutes int
	}
	Rules struct {
		// Optional JSON configuration file; when set the engine reads rules
		// from it (hot-reloaded) instead of the database.
		FilePath string
	}
	Log struct {
		Level string
	}
}

// Load reads config.yaml from the working directory and /etc/fleetwatch,
// with FLEETWATCH_* environment overrides. Missing file falls back to
// defaults.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/fleetwatch")
	viper.SetEnvPrefix("fleetwatch")
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.path", "data/fleetwatch.db")
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.topic", "telemetry")
	viper.SetDefault("kafka.groupid", "fleetwatch-engine")
	viper.SetDefault("notify.timeoutseconds", 10)
	viper.SetDefault("engine.windowretentionminutes", 120)
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
