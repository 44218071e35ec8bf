package models

import (
	"time"

	"github.com/google/uuid"
)

type Job struct {
	ID           uuid.UUID  `json:"id"`
	Type         string     `json:"type"` // "file-extraction"
	Status       string     `json:"status"` // "queued" | "processing" | "completed" | "failed"
	ReferenceID  uuid.UUID  `json:"reference_id"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type AttachmentUpdate struct {
	JobID        uuid.UUID `json:"job_id"`
	AttachmentID uuid.UUID `json:"attachment_id"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
