package llm

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// defaultOpenRouterModel is a vision model, since solving sends the
	// problem as an image.
	defaultOpenRouterModel = "google/gemini-2.0-flash-001"
)

// openRouterHeaders identify mathpad in OpenRouter's app rankings.
var openRouterHeaders = map[string]string{
	"HTTP-Referer": "https://github.com/abhisek/mathpad",
	"X-Title":      "Mathpad",
}

// OpenRouterProvider routes solve, chat, quiz and classify calls through
// OpenRouter. The API is OpenAI-compatible, so images travel as data-URL
// parts exactly as with OpenAIProvider.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
// An empty model selects a Gemini vision model.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, &ErrMissingAPIKey{Provider: "openrouter", EnvVar: "MATHPAD_OPENROUTER_API_KEY"}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenRouterModel
	}

	inner, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   model,
		BaseURL: baseURL,
		Headers: openRouterHeaders,
	})
	if err != nil {
		return nil, err
	}
	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}
