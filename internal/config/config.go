package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Scrape     ScrapeConfig     `yaml:"scrape"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Storage    StorageConfig    `yaml:"storage"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
}

type ProviderConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty"`
	Model          string `yaml:"model,omitempty"`
	EmbeddingModel string `yaml:"embedding_model,omitempty"`
}

type ScrapeConfig struct {
	Languages    []string      `yaml:"languages,omitempty"`
	OutputDir    string        `yaml:"output_dir,omitempty"`
	RequestDelay time.Duration `yaml:"request_delay,omitempty"`
	UserAgent    string        `yaml:"user_agent,omitempty"`
	RefreshCron  string        `yaml:"refresh_cron,omitempty"`
}

type DatasetConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

type EvaluationConfig struct {
	Mode        string        `yaml:"mode,omitempty"` // "closed-book", "oracle", "rag"
	Concurrency int           `yaml:"concurrency,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	TopK        int           `yaml:"top_k,omitempty"`
	Splitter    string        `yaml:"splitter,omitempty"` // "sentence" or "paragraph"
}

type StorageConfig struct {
	Type      string `yaml:"type,omitempty"`       // "sqlite" or "memory"
	Path      string `yaml:"path,omitempty"`       // SQLite file path
	IndexPath string `yaml:"index_path,omitempty"` // hybrid search index path
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// Default returns a Config usable without a config file on disk.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]ProviderConfig)
	}
	if strings.TrimSpace(cfg.LLM.DefaultProvider) == "" {
		cfg.LLM.DefaultProvider = "openai"
	}
	if len(cfg.Scrape.Languages) == 0 {
		cfg.Scrape.Languages = []string{"en"}
	}
	if strings.TrimSpace(cfg.Scrape.OutputDir) == "" {
		cfg.Scrape.OutputDir = "data"
	}
	if cfg.Scrape.RequestDelay <= 0 {
		cfg.Scrape.RequestDelay = 500 * time.Millisecond
	}
	if strings.TrimSpace(cfg.Scrape.UserAgent) == "" {
		cfg.Scrape.UserAgent = "wikifacts-bench/1.0 (+https://github.com/wikifactslab/wikifacts)"
	}
	if strings.TrimSpace(cfg.Dataset.Dir) == "" {
		cfg.Dataset.Dir = "data/dataset"
	}
	if strings.TrimSpace(cfg.Evaluation.Mode) == "" {
		cfg.Evaluation.Mode = "closed-book"
	}
	if cfg.Evaluation.Concurrency <= 0 {
		cfg.Evaluation.Concurrency = 4
	}
	if cfg.Evaluation.Timeout <= 0 {
		cfg.Evaluation.Timeout = 6 * time.Minute
	}
	if cfg.Evaluation.MaxAttempts <= 0 {
		cfg.Evaluation.MaxAttempts = 3
	}
	if cfg.Evaluation.TopK <= 0 {
		cfg.Evaluation.TopK = 5
	}
	if strings.TrimSpace(cfg.Evaluation.Splitter) == "" {
		cfg.Evaluation.Splitter = "sentence"
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := cfg.LLM.Providers["openai"]
		p.APIKey = v
		cfg.LLM.Providers["openai"] = p
	}

	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	}
}
