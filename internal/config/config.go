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
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Snapshots SnapshotsConfig `mapstructure:"snapshots"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory stores.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// RedisConfig locates the queue backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig names the project queue.
type QueueConfig struct {
	Name           string `mapstructure:"name"`
	RetentionHours int    `mapstructure:"retention_hours"`
}

// ExtractorConfig governs the headless search extraction. Disabled selects
// the no-op extractor for local development without a browser.
type ExtractorConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	UserAgent          string `mapstructure:"user_agent"`
	NavTimeoutSeconds  int    `mapstructure:"nav_timeout_seconds"`
	ScrollDelaySeconds int    `mapstructure:"scroll_delay_seconds"`
	MaxScrolls         int    `mapstructure:"max_scrolls"`
}

// EnrichConfig paces the website enrichment pipeline.
type EnrichConfig struct {
	BatchSize           int     `mapstructure:"batch_size"`
	BatchDelaySeconds   int     `mapstructure:"batch_delay_seconds"`
	TimeoutSeconds      int     `mapstructure:"timeout_seconds"`
	ProbeTimeoutSeconds int     `mapstructure:"probe_timeout_seconds"`
	DomainQPS           float64 `mapstructure:"domain_qps"`
}

// PubSubConfig holds metadata for publish-subscribe notifications. An empty
// project ID disables the sink.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SnapshotsConfig selects where raw rendered pages are archived. An empty
// bucket and directory disables archival.
type SnapshotsConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEADGEN")
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
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("queue.name", "projects")
	v.SetDefault("queue.retention_hours", 24)
	v.SetDefault("extractor.enabled", false)
	v.SetDefault("extractor.user_agent", "leadgen-bot/0.1")
	v.SetDefault("extractor.nav_timeout_seconds", 90)
	v.SetDefault("extractor.scroll_delay_seconds", 5)
	v.SetDefault("extractor.max_scrolls", 10)
	v.SetDefault("enrich.batch_size", 3)
	v.SetDefault("enrich.batch_delay_seconds", 5)
	v.SetDefault("enrich.timeout_seconds", 60)
	v.SetDefault("enrich.probe_timeout_seconds", 10)
	v.SetDefault("pubsub.topic_name", "project-events")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must be set")
	}
	if c.Enrich.BatchSize <= 0 {
		return fmt.Errorf("enrich.batch_size must be > 0")
	}
	if c.Enrich.BatchDelaySeconds < 0 {
		return fmt.Errorf("enrich.batch_delay_seconds must be >= 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// ServerTimeout converts the request timeout config into a duration.
func (c Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// BatchDelay converts the enrichment pacing config into a duration.
func (c Config) BatchDelay() time.Duration {
	return time.Duration(c.Enrich.BatchDelaySeconds) * time.Second
}

// QueueRetention converts the retention config into a duration.
func (c Config) QueueRetention() time.Duration {
	return time.Duration(c.Queue.RetentionHours) * time.Hour
}
