package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration loaded from config.yaml.
type Config struct {
	DBPath       string  `yaml:"db_path"       json:"-"`
	HTTPAddr     string  `yaml:"http_addr"     json:"-"`
	LogLevel     string  `yaml:"log_level"     json:"-"`
	LogFormat    string  `yaml:"log_format"    json:"-"`
	ModelsDir    string  `yaml:"models_dir"    json:"models_dir"`
	ChunkSize    int     `yaml:"chunk_size"    json:"chunk_size"`
	DefaultModel string  `yaml:"default_model" json:"default_model"`
	Schedule     string  `yaml:"schedule"      json:"schedule"`
	Explain      Explain `yaml:"explain"       json:"explain"`
}

// Explain configures the explanation provider used for classifier hits.
type Explain struct {
	Provider    string        `yaml:"provider"    json:"provider"`
	Model       string        `yaml:"model"       json:"model"`
	APIKeyEnv   string        `yaml:"api_key_env" json:"-"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"     json:"timeout"`
	BaseURL     string        `yaml:"base_url"    json:"base_url,omitempty"`
}

// APIKey reads the provider key from the configured environment variable.
func (e Explain) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "/data/fraudscan.db"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.ModelsDir == "" {
		c.ModelsDir = "/data/models"
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 50000
	}
	if c.DefaultModel == "" {
		c.DefaultModel = "RandomForest"
	}
	if c.Explain.Provider == "" {
		c.Explain.Provider = "template"
	}
	if c.Explain.APIKeyEnv == "" {
		switch c.Explain.Provider {
		case "gemini":
			c.Explain.APIKeyEnv = "GEMINI_API_KEY"
		case "openai":
			c.Explain.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if c.Explain.Concurrency == 0 {
		c.Explain.Concurrency = 16
	}
	if c.Explain.Timeout == 0 {
		c.Explain.Timeout = 25 * time.Second
	}
}

// validate rejects values no default can repair.
func (c *Config) validate() error {
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.Explain.Concurrency < 0 {
		return fmt.Errorf("explain.concurrency must be positive, got %d", c.Explain.Concurrency)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns a default Config so the server
// can start without a mounted config file (useful for bare Docker runs).
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &cfg, nil
}
