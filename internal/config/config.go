// Package config loads pesflow settings from an optional YAML file and
// PESFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/goatkit/pesflow/internal/database"
	"github.com/goatkit/pesflow/internal/repository"
)

// EnvPrefix prefixes every environment override, e.g. PESFLOW_DATABASE_DSN.
const EnvPrefix = "PESFLOW"

// Config is the full application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig selects the SQL store. An empty DSN keeps records in memory.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	SlowQuery       time.Duration `mapstructure:"slow_query"`
}

// RedisConfig enables the cross-process change feed when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// PolicyConfig holds the inputs of the field access policy.
type PolicyConfig struct {
	// Location is the IANA zone the scheduled date and time are written in.
	Location string `mapstructure:"location"`
}

// SchedulerConfig controls the background jobs.
type SchedulerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ReminderSpec   string        `mapstructure:"reminder_spec"`
	ReminderWindow time.Duration `mapstructure:"reminder_window"`
}

// LogConfig selects the zap preset and level.
type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	pool := database.DefaultPoolConfig()
	v.SetDefault("database.driver", pool.Driver)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", pool.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", pool.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", pool.ConnMaxLifetime)
	v.SetDefault("database.max_retries", pool.MaxRetries)
	v.SetDefault("database.retry_backoff", pool.RetryBackoff)
	v.SetDefault("database.slow_query", pool.SlowQueryThreshold)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", repository.DefaultFeedChannel)

	v.SetDefault("policy.location", "Europe/Madrid")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reminder_spec", "0 * * * *")
	v.SetDefault("scheduler.reminder_window", time.Hour)

	v.SetDefault("log.mode", "production")
	v.SetDefault("log.level", "info")
}

// Load reads path when given, otherwise looks for pesflow.yaml in the working
// directory and /etc/pesflow. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pesflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pesflow")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "postgresql", "mysql", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if _, err := c.Policy.TimeLocation(); err != nil {
		return err
	}
	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.ReminderSpec); err != nil {
			return fmt.Errorf("invalid scheduler.reminder_spec %q: %w", c.Scheduler.ReminderSpec, err)
		}
		if c.Scheduler.ReminderWindow <= 0 {
			return fmt.Errorf("scheduler.reminder_window must be positive")
		}
	}
	switch strings.ToLower(c.Log.Mode) {
	case "production", "development":
	default:
		return fmt.Errorf("unsupported log mode %q", c.Log.Mode)
	}
	return nil
}

// TimeLocation resolves the configured IANA zone.
func (p PolicyConfig) TimeLocation() (*time.Location, error) {
	if strings.TrimSpace(p.Location) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid policy.location %q: %w", p.Location, err)
	}
	return loc, nil
}

// UsesSQL reports whether a SQL store is configured.
func (d DatabaseConfig) UsesSQL() bool {
	return strings.TrimSpace(d.DSN) != ""
}

// PoolConfig converts the settings into a connection pool configuration.
func (d DatabaseConfig) PoolConfig() database.PoolConfig {
	pc := database.DefaultPoolConfig()
	pc.Driver = d.Driver
	pc.DSN = d.DSN
	if d.MaxOpenConns > 0 {
		pc.MaxOpenConns = d.MaxOpenConns
	}
	if d.MaxIdleConns > 0 {
		pc.MaxIdleConns = d.MaxIdleConns
	}
	if d.ConnMaxLifetime > 0 {
		pc.ConnMaxLifetime = d.ConnMaxLifetime
	}
	if d.MaxRetries >= 0 {
		pc.MaxRetries = d.MaxRetries
	}
	if d.RetryBackoff > 0 {
		pc.RetryBackoff = d.RetryBackoff
	}
	if d.SlowQuery > 0 {
		pc.SlowQueryThreshold = d.SlowQuery
	}
	return pc
}

// Enabled reports whether the Redis change feed is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// FeedConfig converts the settings for repository.DialRedisFeed.
func (r RedisConfig) FeedConfig() repository.RedisFeedConfig {
	return repository.RedisFeedConfig{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
		Channel:  r.Channel,
	}
}
