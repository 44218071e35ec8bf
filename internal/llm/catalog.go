package llm

import "os"

// ModelSpec describes one selectable model in the catalog.
type ModelSpec struct {
	Name           string `json:"name"`
	Provider       string `json:"provider"`
	ModelID        string `json:"model_id"`
	APIKeyEnv      string `json:"-"`
	Description    string `json:"description"`
	SupportsVision bool   `json:"supports_vision"`
}

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// catalog lists the models the application can talk to, keyed by display name.
// Order matters: it is the order the UI presents them in.
var catalog = []ModelSpec{
	{
		Name:           "GPT-4o",
		Provider:       ProviderOpenAI,
		ModelID:        "gpt-4o",
		APIKeyEnv:      "OPENAI_API_KEY",
		Description:    "OpenAI's flagship multimodal model",
		SupportsVision: true,
	},
	{
		Name:           "GPT-4.1",
		Provider:       ProviderOpenAI,
		ModelID:        "gpt-4.1",
		APIKeyEnv:      "OPENAI_API_KEY",
		Description:    "OpenAI's latest text model",
		SupportsVision: false,
	},
	{
		Name:           "Claude Sonnet 4",
		Provider:       ProviderAnthropic,
		ModelID:        "claude-sonnet-4-20250514",
		APIKeyEnv:      "ANTHROPIC_API_KEY",
		Description:    "Anthropic's balanced model",
		SupportsVision: true,
	},
	{
		Name:           "Claude Opus 4",
		Provider:       ProviderAnthropic,
		ModelID:        "claude-opus-4-20250514",
		APIKeyEnv:      "ANTHROPIC_API_KEY",
		Description:    "Anthropic's most capable model",
		SupportsVision: true,
	},
	{
		Name:           "Gemini 2.5 Flash",
		Provider:       ProviderGoogle,
		ModelID:        "gemini-2.5-flash-preview-05-20",
		APIKeyEnv:      "GOOGLE_API_KEY",
		Description:    "Google's fast multimodal model",
		SupportsVision: true,
	},
}

// Lookup finds a model spec by display name.
func Lookup(name string) (*ModelSpec, bool) {
	for i := range catalog {
		if catalog[i].Name == name {
			return &catalog[i], true
		}
	}
	return nil, false
}

// All returns every catalog entry in presentation order.
func All() []ModelSpec {
	out := make([]ModelSpec, len(catalog))
	copy(out, catalog)
	return out
}

// Available reports whether the spec's provider API key is configured.
func (s *ModelSpec) Available() bool {
	return os.Getenv(s.APIKeyEnv) != ""
}
