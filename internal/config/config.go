package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Hub        HubConfig        `mapstructure:"hub"`
	Conference ConferenceConfig `mapstructure:"conference"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// HubConfig selects the broadcast backend. "memory" serves a single process;
// "redis" fans signals out across replicas through the broker.
type HubConfig struct {
	Backend string `mapstructure:"backend"`
}

type ConferenceConfig struct {
	// HostPrefix is the display name prefix that marks a caller as the host
	// when the provider omits an explicit role.
	HostPrefix string `mapstructure:"host_prefix"`
	// WorkerPoolSize bounds concurrent store work triggered by realtime
	// sessions.
	WorkerPoolSize int `mapstructure:"worker_pool_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	HubBackendMemory = "memory"
	HubBackendRedis  = "redis"
)

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("hub.backend", HubBackendMemory)
	viper.SetDefault("conference.host_prefix", "Dr.")
	viper.SetDefault("conference.worker_pool_size", 16)
	viper.SetDefault("log.level", "info")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
