package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete citecheck configuration
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
	Prompt       PromptConfig       `yaml:"prompt" mapstructure:"prompt"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// HTTPConfig controls page and source fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls the fetched page cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig controls per-domain and per-provider request rates
type RateLimitingConfig struct {
	RequestsPerSecond    float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize            int     `yaml:"burst_size" mapstructure:"burst_size"`
	LLMRequestsPerSecond float64 `yaml:"llm_requests_per_second" mapstructure:"llm_requests_per_second"`
	LLMBurstSize         int     `yaml:"llm_burst_size" mapstructure:"llm_burst_size"`
}

// ExtractionConfig controls claim boundary extraction
type ExtractionConfig struct {
	MinClaimLength   int      `yaml:"min_claim_length" mapstructure:"min_claim_length"`
	BlockTags        []string `yaml:"block_tags" mapstructure:"block_tags"`
	StrictOccurrence bool     `yaml:"strict_occurrence" mapstructure:"strict_occurrence"`
}

// PromptConfig controls prompt construction
type PromptConfig struct {
	MaxSourceChars int    `yaml:"max_source_chars" mapstructure:"max_source_chars"`
	IncludeContext bool   `yaml:"include_context" mapstructure:"include_context"`
	SystemPrompt   string `yaml:"system_prompt,omitempty" mapstructure:"system_prompt"`
}

// LLMConfig selects and configures the verifying model
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console, json
}

// DefaultBlockTags are the containers that scope a claim span
var DefaultBlockTags = []string{"p", "li", "td", "th", "div", "section"}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "citecheck/0.3 (+https://github.com/ppiankov/citecheck)",
			MaxBodyBytes:  5_000_000,
			RespectRobots: true,
			MaxRetries:    3,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultCacheDir(),
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond:    2,
			BurstSize:            4,
			LLMRequestsPerSecond: 1,
			LLMBurstSize:         2,
		},
		Extraction: ExtractionConfig{
			MinClaimLength: 10,
			BlockTags:      append([]string(nil), DefaultBlockTags...),
		},
		Prompt: PromptConfig{
			MaxSourceChars: 50_000,
			IncludeContext: true,
		},
		LLM: LLMConfig{
			Timeout:   60,
			MaxTokens: 1000,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "citecheck")
	}
	return filepath.Join(os.TempDir(), "citecheck-cache")
}
