package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string `mapstructure:"PORT"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Workers is the size of the delivery worker pool
	Workers int `mapstructure:"WORKERS"`
	// QueueSize bounds the dispatch queue
	QueueSize int `mapstructure:"QUEUE_SIZE"`

	// RetrySweepSeconds is the retry scheduler tick
	RetrySweepSeconds int `mapstructure:"RETRY_SWEEP_SECONDS"`
	// CleanupIntervalHours is the retention cleanup tick
	CleanupIntervalHours int `mapstructure:"CLEANUP_INTERVAL_HOURS"`
	// RetentionDays is how long delivery records are kept
	RetentionDays int `mapstructure:"RETENTION_DAYS"`

	// SeedsFile optionally pre-provisions endpoints at startup
	SeedsFile string `mapstructure:"SEEDS_FILE"`
}

func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("WORKERS", 8)
	viper.SetDefault("QUEUE_SIZE", 256)
	viper.SetDefault("RETRY_SWEEP_SECONDS", 60)
	viper.SetDefault("CLEANUP_INTERVAL_HOURS", 1)
	viper.SetDefault("RETENTION_DAYS", 30)
	viper.SetDefault("SEEDS_FILE", "")

	if err := viper.ReadInConfig(); err != nil {
		// A config file is optional; environment and defaults still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}

// RetrySweepInterval returns the retry scheduler tick as a duration
func (c *Config) RetrySweepInterval() time.Duration {
	return time.Duration(c.RetrySweepSeconds) * time.Second
}

// CleanupInterval returns the retention cleanup tick as a duration
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalHours) * time.Hour
}

// Retention returns the delivery retention window as a duration
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
