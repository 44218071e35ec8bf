package models

import (
	"time"

	"github.com/google/uuid"
)

// Attachment statuses. PDFs move pending -> processing -> ready/failed through
// the worker pool; images are normalized inline and go straight to ready.
const (
	AttachmentPending    = "pending"
	AttachmentProcessing = "processing"
	AttachmentReady      = "ready"
	AttachmentFailed     = "failed"
)

type Attachment struct {
	ID       uuid.UUID `json:"id"`
	Kind     string    `json:"kind"` // "image" or "pdf"
	Filename string    `json:"filename"`
	MimeType string    `json:"mime_type"`
	Size     int64     `json:"size"`
	// Data holds the normalized image bytes; nil for PDFs.
	Data []byte `json:"-"`
	// ExtractedText holds PDF text once extraction completes.
	ExtractedText *string `json:"-"`
	// Description is the human-readable summary shown in the UI and sent to
	// models that cannot see the image itself.
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Error       *string   `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
