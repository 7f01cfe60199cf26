package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Cycles   CyclesConfig   `mapstructure:"cycles"`
	Ranking  RankingConfig  `mapstructure:"ranking"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	CleanOnStartup bool   `mapstructure:"clean_on_startup"`
}

type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type CyclesConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	OfflineAfter time.Duration `mapstructure:"offline_after"`
}

type RankingConfig struct {
	Promotion bool `mapstructure:"promotion"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("database.url", "")
	v.SetDefault("database.clean_on_startup", false)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.presence_ttl", "90s")
	v.SetDefault("nats.url", "")
	v.SetDefault("cycles.interval", "30s")
	v.SetDefault("cycles.offline_after", "2m")
	v.SetDefault("ranking.promotion", false)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/nervecenter")
	}

	// Environment variables override
	v.SetEnvPrefix("HUB")
	v.AutomaticEnv()

	// Legacy env names kept for deployment compatibility.
	_ = v.BindEnv("database.url", "HUB_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("database.clean_on_startup", "HUB_CLEAN_ON_STARTUP", "CLEAN_ON_STARTUP")
	_ = v.BindEnv("redis.url", "HUB_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("nats.url", "HUB_NATS_URL", "NATS_URL")
	_ = v.BindEnv("ranking.promotion", "HUB_RANKING_PROMOTION", "RANKING_PROMOTION")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
