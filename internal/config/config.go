// Package config provides configuration management using viper.
// It supports loading from YAML files, a .env file and environment variable
// overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"cricket-prediction-bot/internal/cricket"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Game      GameConfig      `mapstructure:"game"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// GameConfig holds the betting game configuration.
type GameConfig struct {
	InitialCoins   int64           `mapstructure:"initial_coins"`
	DefaultStake   int64           `mapstructure:"default_stake"`
	SettleRetries  int             `mapstructure:"settle_retries"`
	DefaultOvers   int             `mapstructure:"default_overs"`
	OutcomeWeights cricket.Weights `mapstructure:"outcome_weights"`
}

// RateLimitConfig holds the per-user chat rate limit.
type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// MetricsConfig holds the ops HTTP endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory. A .env file in the
// working directory is loaded into the environment first when present.
func Load(configPath string) (*Config, error) {
	// Existing environment variables win over .env entries.
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, GAME_INITIAL_COINS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.poll_timeout", "10s")

	// Registered so ADMIN_IDS and WHITELIST_CHATS are read from the environment
	v.SetDefault("admin.ids", []int64{})
	v.SetDefault("whitelist.chats", []int64{})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "cricket")
	v.SetDefault("database.name", "cricket")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Game defaults
	w := cricket.DefaultWeights()
	v.SetDefault("game.initial_coins", 1000)
	v.SetDefault("game.default_stake", 10)
	v.SetDefault("game.settle_retries", 3)
	v.SetDefault("game.default_overs", 20)
	v.SetDefault("game.outcome_weights.wicket", w.Wicket)
	v.SetDefault("game.outcome_weights.six", w.Six)
	v.SetDefault("game.outcome_weights.four", w.Four)
	v.SetDefault("game.outcome_weights.two", w.Two)
	v.SetDefault("game.outcome_weights.one", w.One)
	v.SetDefault("game.outcome_weights.dot", w.Dot)

	v.SetDefault("ratelimit.per_second", 2.0)
	v.SetDefault("ratelimit.burst", 5)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("log.level", "info")
}

// Validate checks the settings that do not depend on external services.
func (c *Config) Validate() error {
	if err := c.Game.OutcomeWeights.Validate(); err != nil {
		return fmt.Errorf("invalid game.outcome_weights: %w", err)
	}
	if c.Game.InitialCoins <= 0 {
		return fmt.Errorf("game.initial_coins must be positive, got %d", c.Game.InitialCoins)
	}
	if c.Game.DefaultStake <= 0 {
		return fmt.Errorf("game.default_stake must be positive, got %d", c.Game.DefaultStake)
	}
	if c.Game.SettleRetries < 0 {
		return fmt.Errorf("game.settle_retries must not be negative, got %d", c.Game.SettleRetries)
	}
	if c.Game.DefaultOvers <= 0 {
		return fmt.Errorf("game.default_overs must be positive, got %d", c.Game.DefaultOvers)
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("ratelimit.per_second and ratelimit.burst must be positive")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	return nil
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
