// Package config holds the layered harness configuration: built-in defaults,
// then an optional YAML file, then environment variables. The CLI binds its
// flags on top of the result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const maxWorkers = 20

// ModelConfig configures the hosted model endpoint.
type ModelConfig struct {
	Name        string  `yaml:"name" json:"name"`
	BaseURL     string  `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Timeout     int     `yaml:"timeout,omitempty" json:"timeout,omitempty"` // seconds per request
}

// AgentConfig configures agent execution limits.
type AgentConfig struct {
	MaxEpisodes    int `yaml:"max_episodes,omitempty" json:"max_episodes,omitempty"`
	CommandTimeout int `yaml:"command_timeout,omitempty" json:"command_timeout,omitempty"` // seconds per command
	TaskTimeout    int `yaml:"task_timeout,omitempty" json:"task_timeout,omitempty"`       // seconds per trial
}

// Config is the full harness configuration.
type Config struct {
	Model ModelConfig `yaml:"model" json:"model"`
	Agent AgentConfig `yaml:"agent" json:"agent"`

	// Execution
	NumWorkers int    `yaml:"num_workers,omitempty" json:"num_workers,omitempty"`
	OutputPath string `yaml:"output_path,omitempty" json:"output_path,omitempty"`
	Trials     int    `yaml:"trials,omitempty" json:"trials,omitempty"`
	FailFast   bool   `yaml:"fail_fast,omitempty" json:"fail_fast,omitempty"`
	MaxRetries int    `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// Memory
	MemoryRoot string `yaml:"memory_root,omitempty" json:"memory_root,omitempty"`

	// LLM response cache
	CacheEnabled bool `yaml:"cache_enabled,omitempty" json:"cache_enabled,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name:        "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0,
			MaxTokens:   4000,
			Timeout:     120,
		},
		Agent: AgentConfig{
			MaxEpisodes:    50,
			CommandTimeout: 60,
			TaskTimeout:    600,
		},
		NumWorkers: 3,
		OutputPath: "./results",
		Trials:     1,
		MaxRetries: 2,
		MemoryRoot: defaultMemoryRoot(),
	}
}

func defaultMemoryRoot() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".membench", "memory")
	}
	return ".membench/memory"
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".membench", "config.yaml")
	}
	return "membench.yaml"
}

// Load builds a configuration from defaults, then the YAML file at path (if
// non-empty and present), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file, creating parent directories.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}

	return nil
}

// Validate checks the configuration, filling in defaults where a zero value
// has an obvious correction and rejecting values that are outright wrong.
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model.temperature must be between 0 and 2")
	}
	if c.Model.Timeout <= 0 {
		c.Model.Timeout = 120
	}
	if c.Agent.MaxEpisodes <= 0 {
		c.Agent.MaxEpisodes = 50
	}
	if c.Agent.CommandTimeout <= 0 {
		c.Agent.CommandTimeout = 60
	}
	if c.Agent.TaskTimeout <= 0 {
		c.Agent.TaskTimeout = 600
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	if c.NumWorkers > maxWorkers {
		return fmt.Errorf("num_workers cannot exceed %d", maxWorkers)
	}
	if c.Trials <= 0 {
		c.Trials = 1
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.OutputPath == "" {
		c.OutputPath = "./results"
	}
	if c.MemoryRoot == "" {
		c.MemoryRoot = defaultMemoryRoot()
	}
	return nil
}

// APIKey resolves the configured API key from the environment.
func (c *Config) APIKey() string {
	env := c.Model.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	return os.Getenv(env)
}

// TaskTimeoutDuration returns the per-trial timeout as a Duration.
func (c *Config) TaskTimeoutDuration() time.Duration {
	return time.Duration(c.Agent.TaskTimeout) * time.Second
}

// CommandTimeoutDuration returns the per-command timeout as a Duration.
func (c *Config) CommandTimeoutDuration() time.Duration {
	return time.Duration(c.Agent.CommandTimeout) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEMBENCH_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("MEMBENCH_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Model.Temperature = f
		}
	}
	if v := os.Getenv("MEMBENCH_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Model.MaxTokens = n
		}
	}
	if v := os.Getenv("MEMBENCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.NumWorkers = n
		}
	}
	if v := os.Getenv("MEMBENCH_OUTPUT"); v != "" {
		cfg.OutputPath = v
	}
	if v := os.Getenv("MEMBENCH_MEMORY_ROOT"); v != "" {
		cfg.MemoryRoot = v
	}
}
