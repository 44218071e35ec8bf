package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"omnichat-backend/internal/config"
	"omnichat-backend/internal/history"
	"omnichat-backend/internal/llm"
	"omnichat-backend/internal/models"
	"omnichat-backend/internal/repository"
	"omnichat-backend/internal/services"
)

type ChatHandler struct {
	cfg           config.ChatConfig
	conversations *repository.ConversationRepo
	messages      *repository.MessageRepo
	attachments   *repository.AttachmentRepo
	manager       *history.Manager
	fileProc      *services.FileProcessor
	// newProvider is swappable so tests can stub the network boundary.
	newProvider func(ctx context.Context, name string) (llm.Provider, *llm.ModelSpec, error)
}

func NewChatHandler(
	cfg config.ChatConfig,
	conversations *repository.ConversationRepo,
	messages *repository.MessageRepo,
	attachments *repository.AttachmentRepo,
	manager *history.Manager,
	fileProc *services.FileProcessor,
) *ChatHandler {
	return &ChatHandler{
		cfg:           cfg,
		conversations: conversations,
		messages:      messages,
		attachments:   attachments,
		manager:       manager,
		fileProc:      fileProc,
		newProvider:   llm.New,
	}
}

// SendMessage runs one chat turn: persist the user message, call the selected
// model with the windowed history, persist the reply.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation id", r))
		return
	}

	var req models.ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"content": "content is required"}, r))
		return
	}

	modelName := req.Model
	if modelName == "" {
		modelName = h.cfg.DefaultModel
	}

	conv, err := h.conversations.GetByID(r.Context(), convID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	provider, spec, err := h.newProvider(r.Context(), modelName)
	if err != nil {
		switch {
		case errors.Is(err, llm.ErrUnknownModel):
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"model": err.Error()}, r))
		case errors.Is(err, llm.ErrNoAPIKey):
			writeJSON(w, http.StatusConflict, errorResp("MODEL_UNAVAILABLE", err.Error(), r))
		default:
			handleServiceError(w, r, err)
		}
		return
	}
	defer provider.Close()

	var att *models.Attachment
	if req.AttachmentID != nil {
		att, err = h.attachments.GetByID(r.Context(), *req.AttachmentID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if att.Status != models.AttachmentReady {
			writeJSON(w, http.StatusConflict, errorResp("ATTACHMENT_NOT_READY",
				"Attachment is still being processed or failed; check its status first", r))
			return
		}
	}

	chatReq, err := h.buildChatRequest(r.Context(), conv.ID, req.Content, att, spec)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// The user message is persisted before the model call so a provider
	// failure never loses what the user typed.
	userMsg := &models.Message{
		ConversationID: conv.ID,
		Role:           "user",
		Content:        req.Content,
		AttachmentID:   req.AttachmentID,
	}
	if err := h.messages.Append(r.Context(), userMsg); err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.manager.EnsureTitle(r.Context(), conv, req.Content)

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Timeout())
	defer cancel()

	resp, err := provider.Chat(ctx, chatReq)
	if err != nil {
		h.writeProviderError(w, r, err)
		return
	}

	reply := &models.Message{
		ConversationID: conv.ID,
		Role:           "assistant",
		Content:        resp.Content,
		ModelName:      &spec.Name,
	}
	if err := h.messages.Append(r.Context(), reply); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.conversations.Touch(r.Context(), conv.ID, spec.Name); err != nil {
		log.Printf("chat: failed to touch conversation %s: %v", conv.ID, err)
	}

	writeJSON(w, http.StatusOK, models.ChatMessageResponse{
		ConversationID: conv.ID,
		UserMessage:    *userMsg,
		Reply:          *reply,
	})
}

// buildChatRequest assembles the provider request: the windowed history, then
// the new user turn with its attachment folded in. Images ride along as image
// parts for vision models; PDFs and non-vision images are framed as text.
func (h *ChatHandler) buildChatRequest(
	ctx context.Context,
	convID uuid.UUID,
	content string,
	att *models.Attachment,
	spec *llm.ModelSpec,
) (*llm.ChatRequest, error) {
	prior, err := h.messages.ListByConversation(ctx, convID, h.cfg.MaxHistory)
	if err != nil {
		return nil, err
	}

	msgs := make([]llm.Message, 0, len(prior)+1)
	for _, m := range prior {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}

	turn := llm.Message{Role: "user", Content: content}
	if att != nil {
		if frame := h.fileProc.FrameForModel(att, spec.SupportsVision); frame != "" {
			turn.Content = frame + "\n\n" + content
		}
		if att.Kind == "image" && spec.SupportsVision {
			turn.Image = &llm.ImagePart{MIMEType: att.MimeType, Data: att.Data}
		}
	}
	msgs = append(msgs, turn)

	return &llm.ChatRequest{
		System:      h.cfg.SystemPrompt,
		Messages:    msgs,
		Temperature: h.cfg.Temperature,
		MaxTokens:   h.cfg.MaxTokens,
	}, nil
}

func (h *ChatHandler) writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
	kind, hint := llm.Classify(err)
	log.Printf("chat: provider call failed (%s): %v", kind, err)

	status, code := http.StatusBadGateway, "AI_PROVIDER_ERROR"
	switch kind {
	case llm.ErrKindAuth:
		code = "AI_AUTH_ERROR"
	case llm.ErrKindRateLimit:
		status, code = http.StatusTooManyRequests, "AI_RATE_LIMITED"
	case llm.ErrKindOverloaded:
		status, code = http.StatusServiceUnavailable, "AI_OVERLOADED"
	case llm.ErrKindServer:
		code = "AI_SERVER_ERROR"
	}

	writeJSON(w, status, errorResp(code, hint, r))
}
