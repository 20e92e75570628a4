package model

import "time"

// Config is the application configuration resolved from flags, env and file
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	Ingest       IngestConfig       `yaml:"ingest" mapstructure:"ingest"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// HTTPConfig configures outbound HTTP clients
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures the search response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
}

// RateLimitingConfig throttles calls to each search provider. Providers
// overrides the default rate by provider name.
type RateLimitingConfig struct {
	RequestsPerSecond float64                 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int                     `yaml:"burst_size" mapstructure:"burst_size"`
	Providers         map[string]ProviderRate `yaml:"providers,omitempty" mapstructure:"providers"`
}

// ProviderRate is the rate budget of one search provider
type ProviderRate struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size,omitempty" mapstructure:"burst_size"`
}

// ConcurrencyConfig sizes the worker pools
type ConcurrencyConfig struct {
	Workers         int `yaml:"workers" mapstructure:"workers"`
	DeliveryWorkers int `yaml:"delivery_workers" mapstructure:"delivery_workers"`
}

// SearchConfig selects and authenticates the search provider
type SearchConfig struct {
	Provider       string   `yaml:"provider" mapstructure:"provider"` // bing, brave, google, pubmed, fake
	APIKey         string   `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string   `yaml:"base_url,omitempty" mapstructure:"base_url"`
	EngineID       string   `yaml:"engine_id,omitempty" mapstructure:"engine_id"` // google cx
	Market         string   `yaml:"market,omitempty" mapstructure:"market"`
	PageSize       int      `yaml:"page_size" mapstructure:"page_size"`
	BlockedDomains []string `yaml:"blocked_domains,omitempty" mapstructure:"blocked_domains"`
}

// IngestConfig configures the log ingestion path
type IngestConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	DBPath      string `yaml:"db_path" mapstructure:"db_path"`
	TablePrefix string `yaml:"table_prefix" mapstructure:"table_prefix"`
	Region      string `yaml:"region" mapstructure:"region"`
	Bucket      string `yaml:"bucket" mapstructure:"bucket"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
	Mode string `yaml:"mode" mapstructure:"mode"` // gin mode: debug, release, test
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:   15 * time.Second,
			UserAgent: "Crowdframe/0.1 (+https://github.com/ppiankov/crowdframe)",
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
			Dir:       ".crowdframe/cache",
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 3,
			BurstSize:         5,
		},
		Concurrency: ConcurrencyConfig{
			Workers:         4,
			DeliveryWorkers: 2,
		},
		Search: SearchConfig{
			Provider: "fake",
			PageSize: 10,
		},
		Ingest: IngestConfig{
			DBPath:      ".crowdframe/logs.db",
			TablePrefix: "crowdframe",
			Region:      "local",
			Bucket:      "crowdframe",
			MaxAttempts: 3,
		},
		Server: ServerConfig{
			Addr: ":8080",
			Mode: "release",
		},
		Output: OutputConfig{
			Dir: "./crowdframe-audit",
		},
	}
}
