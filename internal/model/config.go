package model

import "time"

// Config holds the complete callreward configuration
type Config struct {
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
	Scoring      ScoringConfig      `yaml:"scoring" mapstructure:"scoring"`
	Dataset      DatasetConfig      `yaml:"dataset" mapstructure:"dataset"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// ExtractionConfig controls code block and call extraction
type ExtractionConfig struct {
	Language    string        `yaml:"language" mapstructure:"language"`         // Fence tag, matched as a literal prefix
	BlockPolicy string        `yaml:"block_policy" mapstructure:"block_policy"` // all, last, first
	MemoTTL     time.Duration `yaml:"memo_ttl" mapstructure:"memo_ttl"`         // Parse memo lifetime (0 disables)
}

// ScoringConfig controls reward computation
type ScoringConfig struct {
	PartialCredit    float64 `yaml:"partial_credit" mapstructure:"partial_credit"`
	NumericTolerance float64 `yaml:"numeric_tolerance" mapstructure:"numeric_tolerance"`
}

// DatasetConfig controls preprocessing of dialogue datasets
type DatasetConfig struct {
	DataSource        string   `yaml:"data_source" mapstructure:"data_source"`
	Ability           string   `yaml:"ability" mapstructure:"ability"`
	Splits            []string `yaml:"splits" mapstructure:"splits"`
	GroundTruthPolicy string   `yaml:"ground_truth_policy" mapstructure:"ground_truth_policy"` // all, first
}

// HTTPConfig controls remote dataset fetching
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`

	// RespectRobots skips dataset URLs disallowed by the host's robots.txt
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls the completion cache used by rollouts
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls worker counts
type ConcurrencyConfig struct {
	Workers        int `yaml:"workers" mapstructure:"workers"`
	RolloutWorkers int `yaml:"rollout_workers" mapstructure:"rollout_workers"`
}

// RateLimitingConfig controls per-client request limits of the reward server
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// LLMConfig configures the provider used for rollouts
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	System      string  `yaml:"system,omitempty" mapstructure:"system"`
}

// ServerConfig configures the HTTP reward server
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxBatchSize   int           `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	IncludeDetails bool          `yaml:"include_details" mapstructure:"include_details"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// LogConfig controls the structured logger
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			Language:    "python",
			BlockPolicy: "all",
			MemoTTL:     10 * time.Minute,
		},
		Scoring: ScoringConfig{
			PartialCredit:    0.5,
			NumericTolerance: 1e-5,
		},
		Dataset: DatasetConfig{
			DataSource:        "fc_merged",
			Ability:           "function_calling",
			Splits:            []string{"train", "validation", "test"},
			GroundTruthPolicy: "all",
		},
		HTTP: HTTPConfig{
			Timeout:       2 * time.Minute,
			UserAgent:     "callreward/0.1",
			MaxBodyBytes:  512 << 20,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".callreward-cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:        8,
			RolloutWorkers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 200,
			BurstSize:         50,
		},
		LLM: LLMConfig{
			Timeout:     60,
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			MaxBodyBytes:   8 << 20,
			MaxBatchSize:   1024,
			IncludeDetails: true,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
