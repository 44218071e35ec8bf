package models

import "github.com/google/uuid"

// ChatMessageRequest is the payload for posting a message to a conversation.
type ChatMessageRequest struct {
	Content      string     `json:"content"`
	Model        string     `json:"model,omitempty"`
	AttachmentID *uuid.UUID `json:"attachment_id,omitempty"`
}

// ChatMessageResponse is the reply from the AI chat.
type ChatMessageResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserMessage    Message   `json:"user_message"`
	Reply          Message   `json:"reply"`
}

// CreateConversationRequest starts a new conversation.
type CreateConversationRequest struct {
	Model string `json:"model,omitempty"`
}

// ConversationDetail is a conversation together with its messages.
type ConversationDetail struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}

// ModelInfo is a catalog entry exposed over the API.
type ModelInfo struct {
	Name           string `json:"name"`
	Provider       string `json:"provider"`
	ModelID        string `json:"model_id"`
	Description    string `json:"description"`
	SupportsVision bool   `json:"supports_vision"`
	Available      bool   `json:"available"`
}
