package services

// Typed errors returned by the service layer. Handlers map these onto HTTP
// status codes without inspecting error strings.

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type TooLargeError struct{ Message string }

func (e *TooLargeError) Error() string { return e.Message }

type UnsupportedError struct{ Message string }

func (e *UnsupportedError) Error() string { return e.Message }
