// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/progress"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// CrawlerConfig governs the scheduler's pool and shutdown behavior.
type CrawlerConfig struct {
	Seed         string        `mapstructure:"seed"`
	PoolSize     int           `mapstructure:"pool_size"`
	QueueDepth   int           `mapstructure:"queue_depth"`
	GracePeriod  time.Duration `mapstructure:"grace_period"`
	CancelWait   time.Duration `mapstructure:"cancel_wait"`
	ResetOnStart bool          `mapstructure:"reset_on_start"`
}

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	UserAgent    string        `mapstructure:"user_agent"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxBodyBytes int           `mapstructure:"max_body_bytes"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig controls the ops HTTP server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
}

// Load builds a Config from defaults, an optional file and the environment.
// Environment variables use the CRAWLER_ prefix with dots replaced by
// underscores, e.g. CRAWLER_CRAWLER_POOL_SIZE=20.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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
	v.SetDefault("crawler.seed", "")
	v.SetDefault("crawler.pool_size", crawler.DefaultPoolSize)
	v.SetDefault("crawler.queue_depth", crawler.DefaultQueueDepth)
	v.SetDefault("crawler.grace_period", crawler.DefaultGracePeriod)
	v.SetDefault("crawler.cancel_wait", crawler.DefaultCancelWait)
	v.SetDefault("crawler.reset_on_start", false)
	v.SetDefault("http.user_agent", "sitecrawler/0.1")
	v.SetDefault("http.fetch_timeout", crawler.DefaultFetchTimeout)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 100)
	v.SetDefault("progress.max_batch_wait", 500*time.Millisecond)
	v.SetDefault("progress.sink_timeout", 5*time.Second)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.CrawlerSettings().Validate(); err != nil {
		return err
	}
	if c.Crawler.Seed != "" {
		if err := crawler.ValidateURL(c.Crawler.Seed); err != nil {
			return fmt.Errorf("crawler.seed: %w", err)
		}
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return errors.New("http.max_body_bytes must be > 0")
	}
	if c.Progress.BufferSize <= 0 {
		return errors.New("progress.buffer_size must be > 0")
	}
	if c.Progress.MaxBatchEvents <= 0 {
		return errors.New("progress.max_batch_events must be > 0")
	}
	if c.Progress.MaxBatchWait <= 0 {
		return errors.New("progress.max_batch_wait must be > 0")
	}
	return nil
}

// CrawlerSettings maps the loaded values onto the scheduler's configuration.
func (c Config) CrawlerSettings() crawler.Config {
	return crawler.Config{
		PoolSize:     c.Crawler.PoolSize,
		QueueDepth:   c.Crawler.QueueDepth,
		FetchTimeout: c.HTTP.FetchTimeout,
		GracePeriod:  c.Crawler.GracePeriod,
		CancelWait:   c.Crawler.CancelWait,
		ResetOnStart: c.Crawler.ResetOnStart,
	}
}

// HubSettings maps the progress section onto the hub configuration.
func (c Config) HubSettings() progress.Config {
	return progress.Config{
		BufferSize:     c.Progress.BufferSize,
		MaxBatchEvents: c.Progress.MaxBatchEvents,
		MaxBatchWait:   c.Progress.MaxBatchWait,
		SinkTimeout:    c.Progress.SinkTimeout,
	}
}
