package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Addr           string `toml:"addr"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
	MaxAnalyses    int    `toml:"max_analyses"`
}

type LLMConfig struct {
	Provider    string   `toml:"provider"`
	Model       string   `toml:"model"`
	APIKey      string   `toml:"api_key"`
	BaseURL     string   `toml:"base_url"`
	Temperature *float32 `toml:"temperature"`
}

type RetryConfig struct {
	MaxRetries     int `toml:"max_retries"`
	BackoffSeconds int `toml:"backoff_seconds"`
}

type ConcurrencyConfig struct {
	MapExtraction int `toml:"map_extraction"`
}

type DemoConfig struct {
	Enabled bool `toml:"enabled"`
}

type PromptsConfig struct {
	MapExtraction string            `toml:"map_extraction"`
	Modes         map[string]string `toml:"modes"`
}

type Config struct {
	Server      ServerConfig      `toml:"server"`
	LLM         LLMConfig         `toml:"llm"`
	Retry       RetryConfig       `toml:"retry"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
	Demo        DemoConfig        `toml:"demo"`
	Prompts     PromptsConfig     `toml:"prompts"`
}

// Default returns the built-in configuration. The service is expected to
// run with no config file at all; everything here is a workable default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 10 << 20,
			MaxAnalyses:    100,
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
		},
		Retry: RetryConfig{
			MaxRetries:     3,
			BackoffSeconds: 5,
		},
		Concurrency: ConcurrencyConfig{
			MapExtraction: 4,
		},
		Demo: DemoConfig{
			Enabled: true,
		},
		Prompts: PromptsConfig{
			MapExtraction: DefaultMapExtractionPrompt,
			Modes: map[string]string{
				"analysis":  DefaultAnalysisPrompt,
				"factcheck": DefaultFactCheckPrompt,
			},
		},
	}
}

// Load reads a TOML file on top of the defaults, so a partial file only
// overrides the keys it names.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when the file exists and falls back to the
// built-in defaults when it does not.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// ApplyEnv lets environment variables override file values. GEMINI_API_KEY
// only fills the key when nothing else set one.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("VERITAS_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
}

// DemoMode reports whether the service should answer with the bundled demo
// dataset instead of calling a provider. Ollama needs no key, so a missing
// key only forces demo mode for the hosted providers.
func (c *Config) DemoMode() bool {
	if !c.Demo.Enabled {
		return false
	}
	if strings.ToLower(c.LLM.Provider) == "ollama" {
		return false
	}
	return c.LLM.APIKey == ""
}
