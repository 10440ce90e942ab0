// Package config loads and validates the spider configuration from a YAML
// file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/debias/spider/internal/fetcher"
	"github.com/debias/spider/internal/logger"
	"github.com/debias/spider/internal/objectstore"
	"github.com/debias/spider/internal/target"
)

const (
	defaultUserAgent      = "debias-spider"
	defaultWorkers        = 4
	defaultRequestTimeout = 30 * time.Second
)

// NatsConfig holds broker connection settings.
type NatsConfig struct {
	DSN string `mapstructure:"dsn"`
}

// PGConfig holds the PostgreSQL connection string.
type PGConfig struct {
	Connection string `mapstructure:"connection"`
}

// KeyValueConfig holds the dedup-cache connection settings.
type KeyValueConfig struct {
	DSN string `mapstructure:"dsn"`
}

// HTTPConfig holds outbound HTTP settings.
type HTTPConfig struct {
	UserAgent string `mapstructure:"user_agent"`
}

// FetcherConfig holds fetch worker settings.
type FetcherConfig struct {
	Workers         int           `mapstructure:"workers"`
	RenderThreshold int           `mapstructure:"render_threshold"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// RendererConfig holds render worker settings.
type RendererConfig struct {
	Workers    int    `mapstructure:"workers"`
	BrowserBin string `mapstructure:"browser_bin"`
}

// ProcessorConfig holds process worker settings.
type ProcessorConfig struct {
	Workers int `mapstructure:"workers"`
}

// Config is the full configuration surface. Unknown keys are ignored.
type Config struct {
	Debug     bool               `mapstructure:"debug"`
	Log       logger.Config      `mapstructure:"log"`
	Nats      NatsConfig         `mapstructure:"nats"`
	S3        objectstore.Config `mapstructure:"s3"`
	PG        PGConfig           `mapstructure:"pg"`
	KeyValue  KeyValueConfig     `mapstructure:"keyvalue"`
	HTTP      HTTPConfig         `mapstructure:"http"`
	Fetcher   FetcherConfig      `mapstructure:"fetcher"`
	Renderer  RendererConfig     `mapstructure:"renderer"`
	Processor ProcessorConfig    `mapstructure:"processor"`
	Targets   []target.Config    `mapstructure:"targets"`
}

// Load reads configuration from the given file. Environment variables
// prefixed with SPIDER_ override file values (SPIDER_NATS_DSN, ...).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http.user_agent", defaultUserAgent)
	v.SetDefault("fetcher.workers", defaultWorkers)
	v.SetDefault("fetcher.render_threshold", fetcher.DefaultRenderThreshold)
	v.SetDefault("fetcher.request_timeout", defaultRequestTimeout)
	v.SetDefault("renderer.workers", defaultWorkers)
	v.SetDefault("processor.workers", defaultWorkers)
	v.SetDefault("log.level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/spider")
	}

	v.SetEnvPrefix("spider")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks required settings and per-target configuration. Unknown
// target render values are rejected here, at load time.
func (c *Config) Validate() error {
	if c.Nats.DSN == "" {
		return errors.New("nats.dsn required")
	}
	if c.PG.Connection == "" {
		return errors.New("pg.connection required")
	}
	if c.KeyValue.DSN == "" {
		return errors.New("keyvalue.dsn required")
	}
	if err := c.S3.Validate(); err != nil {
		return err
	}

	for i := range c.Targets {
		if err := c.Targets[i].Validate(); err != nil {
			return err
		}
	}

	return nil
}
