package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all featureforge configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the model client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// ExecutionConfig configures the execution engine.
type ExecutionConfig struct {
	// Keep original columns after a transformation finishes
	KeepOriginal bool `yaml:"keep_original"`

	// Wall clock limit for a single transformation run
	Timeout string `yaml:"timeout"`

	// Benchmark iterations
	Iterations int `yaml:"iterations"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "120s",
		},
		Execution: ExecutionConfig{
			KeepOriginal: true,
			Timeout:      "30s",
			Iterations:   3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment variables override either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("FORGE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if provider := os.Getenv("FORGE_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if model := os.Getenv("FORGE_MODEL"); model != "" {
		c.LLM.Model = model
	}
}

// LLMTimeout parses the model request timeout, falling back to two
// minutes on a bad value.
func (c *Config) LLMTimeout() time.Duration {
	if d, err := time.ParseDuration(c.LLM.Timeout); err == nil && d > 0 {
		return d
	}
	return 2 * time.Minute
}

// ExecutionTimeout parses the transformation run limit, falling back to
// thirty seconds on a bad value.
func (c *Config) ExecutionTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Execution.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}
