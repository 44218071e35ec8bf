package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
)

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrNoAPIKey     = errors.New("API key not configured")
)

// New builds a connected provider for the named catalog model. It fails
// before any network call when the model is unknown or its key is missing.
// The caller owns the returned provider and must Close it.
func New(ctx context.Context, name string) (Provider, *ModelSpec, error) {
	spec, ok := Lookup(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}

	key := os.Getenv(spec.APIKeyEnv)
	if key == "" {
		return nil, nil, fmt.Errorf("%w: set %s to use %s", ErrNoAPIKey, spec.APIKeyEnv, spec.Name)
	}

	switch spec.Provider {
	case ProviderOpenAI:
		return newOpenAIProvider(key, spec), spec, nil
	case ProviderAnthropic:
		return newAnthropicProvider(key, spec), spec, nil
	case ProviderGoogle:
		p, err := newGoogleProvider(ctx, key, spec)
		if err != nil {
			return nil, nil, err
		}
		return p, spec, nil
	default:
		return nil, nil, fmt.Errorf("%w: no client for provider %s", ErrUnknownModel, spec.Provider)
	}
}
