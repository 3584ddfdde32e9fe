// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	YouTube  YouTubeConfig  `mapstructure:"youtube"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// YouTubeConfig configures the catalog API client.
type YouTubeConfig struct {
	APIKey           string `mapstructure:"api_key"`
	BaseURL          string `mapstructure:"base_url"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig configures the optional detail cache.
type RedisConfig struct {
	URL        string `mapstructure:"url"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ArchiveConfig sets the optional raw payload archive destination.
type ArchiveConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PipelineConfig governs the scrape pipeline.
type PipelineConfig struct {
	MinSubscribers int64 `mapstructure:"min_subscribers"`
	Concurrency    int   `mapstructure:"concurrency"`
	Limit          int   `mapstructure:"limit"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHANNELSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("youtube.timeout_seconds", 15)
	v.SetDefault("youtube.max_retries", 2)
	v.SetDefault("youtube.backoff_initial_ms", 250)
	v.SetDefault("youtube.backoff_max_ms", 5000)
	v.SetDefault("db.table", "youtube_channels")
	v.SetDefault("redis.ttl_minutes", 15)
	v.SetDefault("archive.prefix", "channels")
	v.SetDefault("pipeline.min_subscribers", 1000)
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.limit", 10)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.YouTube.APIKey == "" {
		return fmt.Errorf("youtube.api_key must be set")
	}
	if c.YouTube.TimeoutSeconds <= 0 {
		return fmt.Errorf("youtube.timeout_seconds must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.Pipeline.Limit <= 0 {
		return fmt.Errorf("pipeline.limit must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.Pipeline.MinSubscribers < 0 {
		return fmt.Errorf("pipeline.min_subscribers must be >= 0")
	}
	return nil
}

// ClientTimeout converts the HTTP timeout config into a duration.
func (c Config) ClientTimeout() time.Duration {
	return time.Duration(c.YouTube.TimeoutSeconds) * time.Second
}

// BackoffBase converts the initial backoff config into a duration.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.YouTube.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the backoff ceiling config into a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.YouTube.BackoffMaxMs) * time.Millisecond
}

// CacheTTL converts the redis TTL config into a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.TTLMinutes) * time.Minute
}
