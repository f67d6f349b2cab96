package llm

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Provider names accepted by Config.Provider.
const (
	ProviderVLLM       = "vllm"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderMock       = "mock"
)

const (
	defaultModel     = "mistralai/Mixtral-8x7B-Instruct-v0.1"
	defaultMaxTokens = 512
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which backend to use.
	// Values: "vllm", "openai", "anthropic", "gemini", "openrouter", "ollama", "mock"
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`

	// Timeout bounds a single attempt. Retries get a fresh timeout each.
	Timeout time.Duration `yaml:"timeout"`

	// Wait is the upper bound of the random delay before every request.
	Wait time.Duration `yaml:"wait"`

	// RateLimit caps requests per second. Zero disables it.
	RateLimit float64 `yaml:"rate_limit"`

	Retry RetryConfig `yaml:"retry"`
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey  string
	Model   string // Default: "claude-haiku"
	BaseURL string
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o-mini"
	BaseURL string // Optional. Override for OpenRouter or compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey  string
	Model   string // Default: "gemini-flash"
	BaseURL string // Default: the public Gemini API
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string // Default: "https://openrouter.ai/api/v1"
}

// VLLMConfig holds configuration for an OpenAI-compatible completion
// server that accepts vLLM sampling extensions.
type VLLMConfig struct {
	BaseURL string // Default: "http://localhost:8000/v1"
	APIKey  string // Optional bearer token.
	Model   string
}

// OllamaConfig holds Ollama-specific configuration.
type OllamaConfig struct {
	ServerURL string // Default: "http://localhost:11434"
	Model     string
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries  int           `yaml:"max_retries"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
	// Jitter adds a uniformly random delay in [0, Jitter) to every backoff.
	Jitter time.Duration `yaml:"jitter"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderVLLM,
		Model:    defaultModel,
		Timeout:  60 * time.Second,
		Retry: RetryConfig{
			MaxRetries:  10,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
			Jitter:      250 * time.Millisecond,
		},
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset values.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	ApplyEnv(&cfg)
	return cfg
}

// ApplyEnv overrides cfg with any FLEECE_LLM_* variables that are set.
// When no API key is configured, the provider's conventional key variable
// (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...) is used.
func ApplyEnv(cfg *Config) {
	if p := os.Getenv("FLEECE_LLM_PROVIDER"); p != "" {
		cfg.Provider = p
	}
	if m := os.Getenv("FLEECE_LLM_MODEL"); m != "" {
		cfg.Model = m
	}
	if u := os.Getenv("FLEECE_LLM_BASE_URL"); u != "" {
		cfg.BaseURL = u
	}
	if k := os.Getenv("FLEECE_LLM_API_KEY"); k != "" {
		cfg.APIKey = k
	}
	if t := os.Getenv("FLEECE_LLM_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			cfg.Timeout = d
		}
	}
	if w := os.Getenv("FLEECE_LLM_WAIT"); w != "" {
		if d, err := time.ParseDuration(w); err == nil {
			cfg.Wait = d
		}
	}
	if r := os.Getenv("FLEECE_LLM_RATE_LIMIT"); r != "" {
		if v, err := strconv.ParseFloat(r, 64); err == nil {
			cfg.RateLimit = v
		}
	}
	if n := os.Getenv("FLEECE_LLM_MAX_RETRIES"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			cfg.Retry.MaxRetries = v
		}
	}

	if cfg.APIKey == "" {
		if name := standardKeyVar(cfg.Provider); name != "" {
			cfg.APIKey = os.Getenv(name)
		}
	}
}

func standardKeyVar(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	}
	return ""
}

// Validate checks that the selected provider is known and has what it
// needs to start.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOpenRouter:
		if c.APIKey == "" {
			return fmt.Errorf("an API key is required for the %s provider (set llm.api_key or %s)",
				c.Provider, standardKeyVar(c.Provider))
		}
	case ProviderVLLM, ProviderOllama:
		if c.Model == "" {
			return fmt.Errorf("llm.model is required for the %s provider", c.Provider)
		}
	case ProviderMock:
		// Nothing to check.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("llm.retry.max_retries must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("llm.rate_limit must not be negative")
	}
	return nil
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
