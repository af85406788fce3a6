package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yml"

// envPaths lists the per-environment config files picked up when the
// default path is requested.
var envPaths = map[string]string{
	environmentProduction: "config/config.production.yml",
	environmentStaging:    "config/config.staging.yml",
}

type Config struct {
	Engine         EngineConfig              `yaml:"engine"`
	Logging        LoggingConfig             `yaml:"logging"`
	Exchanges      map[string]ExchangeConfig `yaml:"exchanges"`
	Assets         map[string]AssetOverride  `yaml:"assets"`
	Limits         LimitsConfig              `yaml:"limits"`
	Cache          CacheConfig               `yaml:"cache"`
	ConnectionPool ConnectionPoolConfig      `yaml:"connection_pool"`
	Health         HealthConfig              `yaml:"health"`
	Sentiment      SentimentConfig           `yaml:"sentiment"`
	Metrics        MetricsConfig             `yaml:"metrics"`
	Streams        StreamsConfig             `yaml:"streams"`
}

type EngineConfig struct {
	Name               string `yaml:"name"`
	Version            string `yaml:"version"`
	RequireCredentials bool   `yaml:"require_credentials"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// ExchangeConfig is the per-exchange connection entry. APILimit is the
// number of requests per minute the exchange tolerates.
type ExchangeConfig struct {
	Enabled        bool     `yaml:"enabled"`
	APILimit       int      `yaml:"api_limit"`
	SupportedPairs []string `yaml:"supported_pairs"`
	APIKey         string   `yaml:"api_key"`
	APISecret      string   `yaml:"api_secret"`
	Passphrase     string   `yaml:"passphrase"`
	BaseURL        string   `yaml:"base_url"`
}

// HasCredentials reports whether both halves of the key pair are set.
func (e ExchangeConfig) HasCredentials() bool {
	return e.APIKey != "" && e.APISecret != ""
}

type AssetOverride struct {
	Hidden      bool   `yaml:"hidden"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
}

type LimitsConfig struct {
	RawConcurrency      int           `yaml:"raw_concurrency"`
	AnalyticConcurrency int           `yaml:"analytic_concurrency"`
	Timeout             time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	TickerTTL    time.Duration `yaml:"ticker_ttl"`
	OHLCVTTL     time.Duration `yaml:"ohlcv_ttl"`
	MarketsTTL   time.Duration `yaml:"markets_ttl"`
	LiquidityTTL time.Duration `yaml:"liquidity_ttl"`
	ArbitrageTTL time.Duration `yaml:"arbitrage_ttl"`
	SentimentTTL time.Duration `yaml:"sentiment_ttl"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type HealthConfig struct {
	ProbeSymbol string `yaml:"probe_symbol"`
}

type SentimentConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Namespace       string `yaml:"namespace"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type StreamsConfig struct {
	BinanceBookTicker StreamConfig `yaml:"binance_book_ticker"`
}

type StreamConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	Symbols []string `yaml:"symbols"`
}

// Default returns a configuration carrying every default so callers that
// build the engine in code only have to fill in exchanges.
func Default() *Config {
	return &Config{
		Engine:  EngineConfig{Name: "cryptolens", Version: "dev"},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Limits: LimitsConfig{
			RawConcurrency:      3,
			AnalyticConcurrency: 5,
			Timeout:             30 * time.Second,
		},
		Cache: CacheConfig{
			TickerTTL:    30 * time.Second,
			OHLCVTTL:     5 * time.Minute,
			MarketsTTL:   time.Hour,
			LiquidityTTL: 5 * time.Minute,
			ArbitrageTTL: 60 * time.Second,
			SentimentTTL: 5 * time.Minute,
		},
		ConnectionPool: ConnectionPoolConfig{
			MaxIdleConns:    20,
			MaxConnsPerHost: 10,
			IdleConnTimeout: 90 * time.Second,
		},
		Health:    HealthConfig{ProbeSymbol: "BTC/USDT"},
		Sentiment: SentimentConfig{BaseURL: "https://api.coingecko.com/api/v3"},
		Metrics: MetricsConfig{
			CloudWatch: CloudWatchConfig{Namespace: "CryptoLens"},
		},
		Streams: StreamsConfig{
			BinanceBookTicker: StreamConfig{URL: "wss://stream.binance.com:9443/stream"},
		},
		Exchanges: map[string]ExchangeConfig{},
		Assets:    map[string]AssetOverride{},
	}
}

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, DefaultPath, envPaths)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// applyEnvOverrides lets secrets stay out of the YAML file.
func applyEnvOverrides(config *Config) {
	for id, ex := range config.Exchanges {
		prefix := strings.ToUpper(id)
		if v := os.Getenv(prefix + "_API_KEY"); v != "" {
			ex.APIKey = strings.TrimSpace(v)
		}
		if v := os.Getenv(prefix + "_API_SECRET"); v != "" {
			ex.APISecret = strings.TrimSpace(v)
		}
		if v := os.Getenv(prefix + "_PASSPHRASE"); v != "" {
			ex.Passphrase = strings.TrimSpace(v)
		}
		config.Exchanges[id] = ex
	}

	cw := &config.Metrics.CloudWatch
	if v := os.Getenv("AWS_REGION"); v != "" && cw.Region == "" {
		cw.Region = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cw.AccessKeyID = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cw.SecretAccessKey = strings.TrimSpace(v)
	}

	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		config.Sentiment.APIKey = strings.TrimSpace(v)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Engine.Name == "" {
		return fmt.Errorf("engine.name is required")
	}
	if cfg.Engine.Version == "" {
		return fmt.Errorf("engine.version is required")
	}

	if cfg.Limits.RawConcurrency <= 0 {
		return fmt.Errorf("limits.raw_concurrency must be greater than 0")
	}
	if cfg.Limits.AnalyticConcurrency <= 0 {
		return fmt.Errorf("limits.analytic_concurrency must be greater than 0")
	}
	if cfg.Limits.Timeout <= 0 {
		return fmt.Errorf("limits.timeout must be greater than 0")
	}

	ttls := map[string]time.Duration{
		"cache.ticker_ttl":    cfg.Cache.TickerTTL,
		"cache.ohlcv_ttl":     cfg.Cache.OHLCVTTL,
		"cache.markets_ttl":   cfg.Cache.MarketsTTL,
		"cache.liquidity_ttl": cfg.Cache.LiquidityTTL,
		"cache.arbitrage_ttl": cfg.Cache.ArbitrageTTL,
		"cache.sentiment_ttl": cfg.Cache.SentimentTTL,
	}
	for _, name := range sortedKeys(ttls) {
		if ttls[name] <= 0 {
			return fmt.Errorf("%s must be greater than 0", name)
		}
	}

	strict := cfg.Engine.RequireCredentials && IsProductionLike(AppEnvironment())
	for _, id := range cfg.ExchangeIDs() {
		ex := cfg.Exchanges[id]
		if ex.APILimit < 0 {
			return fmt.Errorf("exchanges.%s.api_limit must not be negative", id)
		}
		if strict && !ex.HasCredentials() {
			return fmt.Errorf("exchanges.%s requires api_key and api_secret in %s", id, AppEnvironment())
		}
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Namespace == "" {
		return fmt.Errorf("metrics.cloudwatch.namespace is required when CloudWatch is enabled")
	}

	if s := cfg.Streams.BinanceBookTicker; s.Enabled {
		if s.URL == "" {
			return fmt.Errorf("streams.binance_book_ticker.url is required when enabled")
		}
		if len(s.Symbols) == 0 {
			return fmt.Errorf("streams.binance_book_ticker.symbols must not be empty when enabled")
		}
	}

	return nil
}

// ExchangeIDs returns the enabled exchange ids in lexical order.
func (c *Config) ExchangeIDs() []string {
	ids := make([]string, 0, len(c.Exchanges))
	for id, ex := range c.Exchanges {
		if ex.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
