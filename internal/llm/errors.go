package llm

import "strings"

// ErrorKind groups provider failures into categories the API layer can map
// onto response codes and actionable hints.
type ErrorKind string

const (
	ErrKindAuth       ErrorKind = "auth"
	ErrKindRateLimit  ErrorKind = "rate_limit"
	ErrKindOverloaded ErrorKind = "overloaded"
	ErrKindServer     ErrorKind = "server"
	ErrKindUnknown    ErrorKind = "unknown"
)

// Classify inspects a provider error and returns its kind plus a hint the
// user can act on. The SDKs wrap HTTP failures in their own error types, so
// matching on the rendered message is the common denominator across all
// three vendors.
func Classify(err error) (ErrorKind, string) {
	if err == nil {
		return ErrKindUnknown, ""
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") || strings.Contains(msg, "authentication"):
		return ErrKindAuth, "Check that the provider API key is valid and not expired."

	case strings.Contains(msg, "403") || strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "permission"):
		return ErrKindAuth, "The API key does not have access to this model."

	case strings.Contains(msg, "429") || strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return ErrKindRateLimit, "Rate limit reached. Wait a moment and try again."

	case strings.Contains(msg, "529") || strings.Contains(msg, "overloaded"):
		return ErrKindOverloaded, "The provider is overloaded. Try again shortly or switch models."

	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "internal server error") ||
		strings.Contains(msg, "service unavailable"):
		return ErrKindServer, "The provider had an internal error. Try again or switch models."

	default:
		return ErrKindUnknown, "An unexpected error occurred talking to the model."
	}
}
