package config

import (
	"errors"
	"time"
)

// Config represents the wildbutton service configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Slack     SlackConfig     `mapstructure:"slack"`
	Race      RaceConfig      `mapstructure:"race"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig represents the PostgreSQL tenant store configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MinConnections int    `mapstructure:"min_connections"`
}

// RedisConfig represents the Redis dedup cache configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SlackConfig represents the Slack API client configuration
type SlackConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SigningSecret string        `mapstructure:"signing_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// RaceConfig represents click race resolution configuration
type RaceConfig struct {
	RunnerUpWindow    time.Duration `mapstructure:"runner_up_window"`
	ConsistencySettle time.Duration `mapstructure:"consistency_settle"`
	MaxRecordAttempts int           `mapstructure:"max_record_attempts"`
}

// ScheduleConfig represents announce scheduling configuration
type ScheduleConfig struct {
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	MaxSearchDays int           `mapstructure:"max_search_days"`
	TickFanout    int           `mapstructure:"tick_fanout"`
}

// RateLimitConfig represents HTTP edge rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Database == "" {
		return errors.New("database.database is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return errors.New("redis.host is required when redis is enabled")
	}
	if c.Slack.SigningSecret == "" {
		return errors.New("slack.signing_secret is required")
	}
	if c.Race.RunnerUpWindow <= 0 {
		return errors.New("race.runner_up_window must be positive")
	}
	if c.Race.MaxRecordAttempts <= 0 {
		return errors.New("race.max_record_attempts must be positive")
	}
	if c.Schedule.MaxSearchDays <= 0 {
		return errors.New("schedule.max_search_days must be positive")
	}
	if c.Schedule.TickInterval <= 0 {
		return errors.New("schedule.tick_interval must be positive")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "wildbutton",
			User:           "wildbutton",
			Password:       "",
			MaxConnections: 20,
			MinConnections: 2,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
		},
		Slack: SlackConfig{
			BaseURL: "https://slack.com/api",
			Timeout: 10 * time.Second,
		},
		Race: RaceConfig{
			RunnerUpWindow:    2000 * time.Millisecond,
			ConsistencySettle: 1000 * time.Millisecond,
			MaxRecordAttempts: 100,
		},
		Schedule: ScheduleConfig{
			TickInterval:  10 * time.Minute,
			MaxSearchDays: 100,
			TickFanout:    8,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 25,
			BurstSize:         50,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
