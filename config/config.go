package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// Link lifecycle
	Links LinksConfig `mapstructure:"links"`

	// Logging
	Log LogConfig `mapstructure:"log"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type ServerConfig struct {
	Addr                string        `mapstructure:"addr"`
	DefaultAlgorithm    string        `mapstructure:"default_algorithm"`
	DefaultRankingLimit int           `mapstructure:"default_ranking_limit"`
	MaxRankingLimit     int           `mapstructure:"max_ranking_limit"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout"`
}

type LinksConfig struct {
	Retention        time.Duration `mapstructure:"retention"`
	EnforceExpiry    bool          `mapstructure:"enforce_expiry"`
	DetectCollisions bool          `mapstructure:"detect_collisions"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
}

type NATSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Consume  bool   `mapstructure:"consume"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	return load(v)
}

// LoadFile reads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Allow environment variables to override YAML entries.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.DefaultRankingLimit <= 0 {
		return fmt.Errorf("config: server.default_ranking_limit must be positive, got %d", c.Server.DefaultRankingLimit)
	}
	if c.Server.MaxRankingLimit < c.Server.DefaultRankingLimit {
		return fmt.Errorf("config: server.max_ranking_limit (%d) is below default_ranking_limit (%d)",
			c.Server.MaxRankingLimit, c.Server.DefaultRankingLimit)
	}
	if c.Links.Retention <= 0 {
		return fmt.Errorf("config: links.retention must be positive, got %s", c.Links.Retention)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.default_algorithm", "MD5")
	v.SetDefault("server.default_ranking_limit", 10)
	v.SetDefault("server.max_ranking_limit", 100)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("links.retention", 30*24*time.Hour)
	v.SetDefault("links.enforce_expiry", false)
	v.SetDefault("links.detect_collisions", true)

	v.SetDefault("log.development", true)
	v.SetDefault("log.level", "info")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.consume", false)
	v.SetDefault("nats.host", "localhost")
	v.SetDefault("nats.port", 4222)

	v.SetDefault("prometheus.enabled", false)
	v.SetDefault("prometheus.port", 9090)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.addr", "HTTP_ADDR")
	v.BindEnv("server.default_algorithm", "DEFAULT_ALGORITHM")

	// Logging
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.encoding", "LOG_ENCODING")

	// NATS
	v.BindEnv("nats.enabled", "NATS_ENABLED")
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Prometheus
	v.BindEnv("prometheus.enabled", "PROM_ENABLED")
	v.BindEnv("prometheus.port", "PROM_PORT")
}
