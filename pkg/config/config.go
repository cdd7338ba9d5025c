package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"GreyPulse/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		SpikeTopic   string   `yaml:"spike_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Cache struct {
		TTL   time.Duration `yaml:"ttl"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Sources struct {
		FetchTimeout time.Duration  `yaml:"fetch_timeout"`
		Retry        struct {
			Attempts   int           `yaml:"attempts"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
		} `yaml:"retry"`
		Endpoints []SourceEndpoint `yaml:"endpoints"`
	} `yaml:"sources"`
	Validator struct {
		MinSources           int                `yaml:"min_sources"`
		OutlierZThreshold    float64            `yaml:"outlier_z_threshold"`
		MaxVarianceThreshold float64            `yaml:"max_variance_threshold"`
		TimeWindow           time.Duration      `yaml:"time_window"`
		OutlierFallbackRatio float64            `yaml:"outlier_fallback_ratio"`
		DefaultWeight        float64            `yaml:"default_weight"`
		Weights              map[string]float64 `yaml:"weights"`
	} `yaml:"validator"`
	Spike struct {
		Threshold     float64       `yaml:"threshold"`
		Lookback      time.Duration `yaml:"lookback"`
		History       time.Duration `yaml:"history"`
		BaselineLimit int           `yaml:"baseline_limit"`
	} `yaml:"spike"`
	Profit struct {
		MinProfitPercentage float64 `yaml:"min_profit_percentage"`
		MinAbsoluteProfit   float64 `yaml:"min_absolute_profit"`
	} `yaml:"profit"`
	Scheduler struct {
		RefreshCron string `yaml:"refresh_cron"`
		WeightsCron string `yaml:"weights_cron"`
		Workers     int    `yaml:"workers"`
	} `yaml:"scheduler"`
	IPOs []IPOEntry `yaml:"ipos"`
}

// SourceEndpoint describes one registered GMP source.
type SourceEndpoint struct {
	ID      string        `yaml:"id"`
	Type    string        `yaml:"type"` // http, stream, mock
	URL     string        `yaml:"url"`
	Weight  float64       `yaml:"weight"`
	Timeout time.Duration `yaml:"timeout"`
}

// IPOEntry is the operator-maintained issue-price reference for an IPO.
type IPOEntry struct {
	Key           string  `yaml:"key"`
	Name          string  `yaml:"name"`
	IssuePriceMin float64 `yaml:"issue_price_min"`
	IssuePriceMax float64 `yaml:"issue_price_max"`
	LotSize       int     `yaml:"lot_size"`
	Board         string  `yaml:"board"`  // "mainboard" or "sme"
	Status        string  `yaml:"status"` // upcoming, open, closed, listed
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_SPIKE_TOPIC"); v != "" {
		c.Kafka.SpikeTopic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}

	c.Server.Port = util.ParseIntDefault(os.Getenv("SERVER_PORT"), c.Server.Port)
	c.ClickHouse.Port = util.ParseIntDefault(os.Getenv("CLICKHOUSE_PORT"), c.ClickHouse.Port)
	c.Cache.Redis.Port = util.ParseIntDefault(os.Getenv("REDIS_PORT"), c.Cache.Redis.Port)

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Sources.FetchTimeout <= 0 {
		c.Sources.FetchTimeout = 20 * time.Second
	}
	if c.Sources.Retry.Attempts <= 0 {
		c.Sources.Retry.Attempts = 3
	}
	if c.Sources.Retry.BackoffMin <= 0 {
		c.Sources.Retry.BackoffMin = 200 * time.Millisecond
	}
	if c.Sources.Retry.BackoffMax <= 0 {
		c.Sources.Retry.BackoffMax = 5 * time.Second
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 10 * time.Minute
	}
	if c.Validator.MinSources <= 0 {
		c.Validator.MinSources = 2
	}
	if c.Validator.OutlierZThreshold <= 0 {
		c.Validator.OutlierZThreshold = 2.0
	}
	if c.Validator.MaxVarianceThreshold <= 0 {
		c.Validator.MaxVarianceThreshold = 0.3
	}
	if c.Validator.TimeWindow <= 0 {
		c.Validator.TimeWindow = 6 * time.Hour
	}
	if c.Validator.OutlierFallbackRatio <= 0 {
		c.Validator.OutlierFallbackRatio = 0.5
	}
	if c.Validator.DefaultWeight <= 0 {
		c.Validator.DefaultWeight = 0.5
	}
	if c.Spike.Threshold <= 0 {
		c.Spike.Threshold = 8.0
	}
	if c.Spike.Lookback <= 0 {
		c.Spike.Lookback = 6 * time.Hour
	}
	if c.Spike.History <= 0 {
		c.Spike.History = 24 * time.Hour
	}
	if c.Spike.BaselineLimit <= 0 {
		c.Spike.BaselineLimit = 5
	}
	if c.Profit.MinProfitPercentage <= 0 {
		c.Profit.MinProfitPercentage = 10.0
	}
	if c.Profit.MinAbsoluteProfit <= 0 {
		c.Profit.MinAbsoluteProfit = 20.0
	}
	if c.Scheduler.RefreshCron == "" {
		c.Scheduler.RefreshCron = "0 */30 * * * *"
	}
	if c.Scheduler.WeightsCron == "" {
		c.Scheduler.WeightsCron = "0 0 0 * * *"
	}
	if c.Scheduler.Workers <= 0 {
		c.Scheduler.Workers = 8
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Kafka.SpikeTopic == "" {
		return fmt.Errorf("kafka.spike_topic is required")
	}
	if len(c.Sources.Endpoints) == 0 {
		return fmt.Errorf("sources.endpoints cannot be empty")
	}
	seen := make(map[string]bool, len(c.Sources.Endpoints))
	for i, s := range c.Sources.Endpoints {
		if s.ID == "" {
			return fmt.Errorf("sources.endpoints[%d].id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id '%s'", s.ID)
		}
		seen[s.ID] = true
		switch s.Type {
		case "http", "stream":
			if s.URL == "" {
				return fmt.Errorf("source '%s': url is required for type '%s'", s.ID, s.Type)
			}
		case "mock":
		default:
			return fmt.Errorf("source '%s': type must be 'http', 'stream' or 'mock', got '%s'", s.ID, s.Type)
		}
	}
	for source, w := range c.Validator.Weights {
		if w <= 0 || w > 1 {
			return fmt.Errorf("validator.weights['%s'] must be in (0, 1], got %v", source, w)
		}
	}
	if c.Validator.OutlierFallbackRatio > 1 {
		return fmt.Errorf("validator.outlier_fallback_ratio must be in (0, 1]")
	}
	return nil
}

// SourceWeights returns the configured weight table, one entry per known source.
func (c *Config) SourceWeights() map[string]float64 {
	out := make(map[string]float64, len(c.Validator.Weights)+len(c.Sources.Endpoints))
	for source, w := range c.Validator.Weights {
		out[source] = w
	}
	for _, s := range c.Sources.Endpoints {
		if s.Weight > 0 {
			out[s.ID] = s.Weight
		}
	}
	return out
}
