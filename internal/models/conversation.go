package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is an ordered collection of chat messages persisted under one id.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	ModelName    string    `json:"model_name"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is a single chat turn. AttachmentID is set when the user message
// carried an uploaded file; ModelName records which model produced or received it.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	Role           string     `json:"role"` // "user" or "assistant"
	Content        string     `json:"content"`
	AttachmentID   *uuid.UUID `json:"attachment_id,omitempty"`
	ModelName      *string    `json:"model_name,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// SearchResult is a message hit from full-history search.
type SearchResult struct {
	ConversationID    uuid.UUID `json:"conversation_id"`
	ConversationTitle string    `json:"conversation_title"`
	MessageID         int64     `json:"message_id"`
	Role              string    `json:"role"`
	Snippet           string    `json:"snippet"`
	CreatedAt         time.Time `json:"created_at"`
}

// HistoryStats summarizes the persisted history database.
type HistoryStats struct {
	ConversationCount int    `json:"conversation_count"`
	MessageCount      int    `json:"message_count"`
	DatabaseSizeBytes int64  `json:"database_size_bytes"`
	OldestMessageAt   string `json:"oldest_message_at,omitempty"`
}
