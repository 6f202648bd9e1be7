package llm

import (
	"fmt"
	"os"
	"time"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "gemini", "anthropic", "openai", "openrouter", "mock"
	Provider string

	Gemini     GeminiConfig
	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig

	// Timeout bounds a single gateway call including retries. Default: 60s.
	Timeout time.Duration

	// MaxTokens caps every response. Default: 2048.
	MaxTokens int
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey  string
	Model   string // Default: "gemini-flash"
	BaseURL string // Optional. Used by tests.
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey  string
	Model   string // Default: "claude-haiku"
	BaseURL string // Optional. Used by tests.
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o-mini"
	BaseURL string // Optional. Override for OpenRouter or compatible APIs.

	// Headers are added to every request, for gateways that want
	// attribution.
	Headers map[string]string
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // Default: "google/gemini-2.0-flash-001"
	BaseURL string // Default: "https://openrouter.ai/api/v1"
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: "gemini",
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		Anthropic: AnthropicConfig{
			Model: "claude-haiku",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		OpenRouter: OpenRouterConfig{
			Model: "google/gemini-2.0-flash-001",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout:   60 * time.Second,
		MaxTokens: 2048,
	}
}

// ConfigFromEnv builds a Config from MATHPAD_* environment variables,
// falling back to defaults for unset values. When no MATHPAD_* key is set
// for the selected provider, the vendor's conventional variable is checked.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if p := os.Getenv("MATHPAD_LLM_PROVIDER"); p != "" {
		cfg.Provider = p
	}

	cfg.Gemini.APIKey = firstEnv("MATHPAD_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	if m := os.Getenv("MATHPAD_GEMINI_MODEL"); m != "" {
		cfg.Gemini.Model = m
	}

	cfg.Anthropic.APIKey = firstEnv("MATHPAD_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	if m := os.Getenv("MATHPAD_ANTHROPIC_MODEL"); m != "" {
		cfg.Anthropic.Model = m
	}

	cfg.OpenAI.APIKey = firstEnv("MATHPAD_OPENAI_API_KEY", "OPENAI_API_KEY")
	if m := os.Getenv("MATHPAD_OPENAI_MODEL"); m != "" {
		cfg.OpenAI.Model = m
	}
	if u := os.Getenv("MATHPAD_OPENAI_BASE_URL"); u != "" {
		cfg.OpenAI.BaseURL = u
	}

	cfg.OpenRouter.APIKey = firstEnv("MATHPAD_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	if m := os.Getenv("MATHPAD_OPENROUTER_MODEL"); m != "" {
		cfg.OpenRouter.Model = m
	}

	if t := os.Getenv("MATHPAD_LLM_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	return cfg
}

// DiscoverConfig checks standard API key env vars in priority order
// (Gemini → OpenAI → Anthropic → OpenRouter) and returns a Config for the
// first provider whose key is found. Returns (Config{}, false) if none found.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()

	if k := firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"); k != "" {
		cfg.Provider = "gemini"
		cfg.Gemini.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.Provider = "openai"
		cfg.OpenAI.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		cfg.Provider = "anthropic"
		cfg.Anthropic.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		cfg.Provider = "openrouter"
		cfg.OpenRouter.APIKey = k
		return cfg, true
	}

	return Config{}, false
}

// Resolve returns ConfigFromEnv when MATHPAD_LLM_PROVIDER is set or the
// default provider has a key, and otherwise whatever DiscoverConfig finds.
func Resolve() Config {
	cfg := ConfigFromEnv()
	if os.Getenv("MATHPAD_LLM_PROVIDER") != "" || cfg.HasCredential() {
		return cfg
	}
	if discovered, ok := DiscoverConfig(); ok {
		return discovered
	}
	return cfg
}

// HasCredential reports whether the selected provider has an API key.
func (c Config) HasCredential() bool {
	return c.Validate() == nil
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case "gemini":
		if c.Gemini.APIKey == "" {
			return &ErrMissingAPIKey{Provider: c.Provider, EnvVar: "MATHPAD_GEMINI_API_KEY"}
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return &ErrMissingAPIKey{Provider: c.Provider, EnvVar: "MATHPAD_ANTHROPIC_API_KEY"}
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return &ErrMissingAPIKey{Provider: c.Provider, EnvVar: "MATHPAD_OPENAI_API_KEY"}
		}
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			return &ErrMissingAPIKey{Provider: c.Provider, EnvVar: "MATHPAD_OPENROUTER_API_KEY"}
		}
	case "mock":
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
