package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"omnichat-backend/internal/config"
	"omnichat-backend/internal/database"
	"omnichat-backend/internal/history"
	"omnichat-backend/internal/llm"
	"omnichat-backend/internal/middleware"
	"omnichat-backend/internal/models"
	"omnichat-backend/internal/repository"
	"omnichat-backend/internal/services"
	"omnichat-backend/internal/websocket"
	"omnichat-backend/internal/worker"
)

type fakeProvider struct {
	reply   string
	err     error
	lastReq *llm.ChatRequest
}

func (f *fakeProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply, Model: "fake"}, nil
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Close() error { return nil }

type testEnv struct {
	srv      http.Handler
	provider *fakeProvider
	convRepo *repository.ConversationRepo
	msgRepo  *repository.MessageRepo
	attRepo  *repository.AttachmentRepo
	jobRepo  *repository.JobRepo
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Default()
	cfg.Upload.ImageMaxDimension = 64

	convRepo := repository.NewConversationRepo(db)
	msgRepo := repository.NewMessageRepo(db)
	attRepo := repository.NewAttachmentRepo(db)
	jobRepo := repository.NewJobRepo(db)
	fileProc := services.NewFileProcessor(cfg.Upload)
	manager := history.NewManager(db, convRepo, msgRepo, attRepo, cfg.History)
	hub := websocket.NewHub()
	pool := worker.NewPool(fileProc, jobRepo, attRepo, hub, 1, 8)

	provider := &fakeProvider{reply: "Hello from the model."}
	chatHandler := NewChatHandler(cfg.Chat, convRepo, msgRepo, attRepo, manager, fileProc)
	chatHandler.newProvider = func(ctx context.Context, name string) (llm.Provider, *llm.ModelSpec, error) {
		spec, ok := llm.Lookup(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", llm.ErrUnknownModel, name)
		}
		return provider, spec, nil
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)

	convHandler := NewConversationHandler(convRepo, manager)
	fileHandler := NewFileHandler(cfg.Upload, fileProc, attRepo, jobRepo, pool)
	histHandler := NewHistoryHandler(manager, msgRepo)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", convHandler.Create)
			r.Get("/", convHandler.List)
			r.Get("/{id}", convHandler.Get)
			r.Delete("/{id}", convHandler.Delete)
			r.Get("/{id}/export", convHandler.Export)
			r.Post("/{id}/messages", chatHandler.SendMessage)
		})
		r.Get("/models", NewModelHandler().List)
		r.Get("/models/{name}", NewModelHandler().Get)
		r.Route("/files", func(r chi.Router) {
			r.Post("/", fileHandler.Upload)
			r.Get("/{id}", fileHandler.GetAttachment)
			r.Get("/{id}/content", fileHandler.GetContent)
		})
		r.Route("/history", func(r chi.Router) {
			r.Get("/search", histHandler.Search)
			r.Get("/stats", histHandler.Stats)
			r.Delete("/", histHandler.Clear)
		})
		r.Get("/jobs/{id}", NewJobHandler(jobRepo).GetJob)
	})

	return &testEnv{
		srv:      r,
		provider: provider,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		attRepo:  attRepo,
		jobRepo:  jobRepo,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createConversation(t *testing.T) uuid.UUID {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/conversations", models.CreateConversationRequest{})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create conversation: status %d: %s", rec.Code, rec.Body)
	}
	var conv models.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatal(err)
	}
	return conv.ID
}

func TestCreateConversation_RejectsUnknownModel(t *testing.T) {
	env := setupEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/conversations", models.CreateConversationRequest{Model: "GPT-9000"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSendMessage_FullTurn(t *testing.T) {
	env := setupEnv(t)
	id := env.createConversation(t)

	rec := env.do(t, http.MethodPost, "/api/v1/conversations/"+id.String()+"/messages",
		models.ChatMessageRequest{Content: "What is the capital of France?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp models.ChatMessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Reply.Content != "Hello from the model." {
		t.Errorf("unexpected reply: %q", resp.Reply.Content)
	}
	if resp.Reply.ModelName == nil || *resp.Reply.ModelName != "GPT-4o" {
		t.Error("reply should record the default model name")
	}

	// Both turns persisted, title derived from the first user message.
	detail := env.do(t, http.MethodGet, "/api/v1/conversations/"+id.String(), nil)
	var d models.ConversationDetail
	if err := json.Unmarshal(detail.Body.Bytes(), &d); err != nil {
		t.Fatal(err)
	}
	if len(d.Messages) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(d.Messages))
	}
	if d.Conversation.Title != "What is the capital of France?" {
		t.Errorf("unexpected title: %q", d.Conversation.Title)
	}

	// The provider saw the system prompt and the user turn.
	if env.provider.lastReq == nil {
		t.Fatal("provider was never called")
	}
	if env.provider.lastReq.System == "" {
		t.Error("expected a system prompt")
	}
	if got := len(env.provider.lastReq.Messages); got != 1 {
		t.Errorf("expected 1 message in first turn, got %d", got)
	}
}

func TestSendMessage_ReplaysHistory(t *testing.T) {
	env := setupEnv(t)
	id := env.createConversation(t)

	env.do(t, http.MethodPost, "/api/v1/conversations/"+id.String()+"/messages",
		models.ChatMessageRequest{Content: "first"})
	env.do(t, http.MethodPost, "/api/v1/conversations/"+id.String()+"/messages",
		models.ChatMessageRequest{Content: "second"})

	// Second call sees: first user turn, assistant reply, new user turn.
	if got := len(env.provider.lastReq.Messages); got != 3 {
		t.Errorf("expected 3 messages replayed, got %d", got)
	}
}

func TestSendMessage_Validation(t *testing.T) {
	env := setupEnv(t)
	id := env.createConversation(t)

	t.Run("empty content", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/conversations/"+id.String()+"/messages",
			models.ChatMessageRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown model", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/conversations/"+id.String()+"/messages",
			models.ChatMessageRequest{Content: "hi", Model: "GPT-9000"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown conversation", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/conversations/"+uuid.NewString()+"/messages",
			models.ChatMessageRequest{Content: "hi"})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestSendMessage_ProviderErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"auth", errors.New("error, status code: 401, message: bad key"), http.StatusBadGateway, "AI_AUTH_ERROR"},
		{"rate limit", errors.New("error, status code: 429"), http.StatusTooManyRequests, "AI_RATE_LIMITED"},
		{"overloaded", errors.New("529 overloaded_error"), http.StatusServiceUnavailable, "AI_OVERLOADED"},
		{"server", errors.New("503 service unavailable"), http.StatusBadGateway, "AI_SERVER_ERROR"},
		{"unknown", errors.New("dial tcp: connection refused"), http.StatusBadGateway, "AI_PROVIDER_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := setupEnv(t)
			id := env.createConversation(t)
			env.provider.err = tc.err

			rec := env.do(t, http.MethodPost, "/api/v1/conversations/"+id.String()+"/messages",
				models.ChatMessageRequest{Content: "hi"})
			if rec.Code != tc.status {
				t.Errorf("expected %d, got %d", tc.status, rec.Code)
			}
			var resp models.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, resp.Error.Code)
			}
		})
	}
}

func TestSendMessage_AttachmentNotReady(t *testing.T) {
	env := setupEnv(t)
	id := env.createConversation(t)

	att := &models.Attachment{Kind: "pdf", Filename: "doc.pdf", MimeType: "application/pdf", Size: 4, Data: []byte("data")}
	if err := env.attRepo.Create(context.Background(), att); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/conversations/"+id.String()+"/messages",
		models.ChatMessageRequest{Content: "summarize this", AttachmentID: &att.ID})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for pending attachment, got %d", rec.Code)
	}
}

func TestSendMessage_ImageAttachmentForVisionModel(t *testing.T) {
	env := setupEnv(t)
	id := env.createConversation(t)

	att := &models.Attachment{
		Kind: "image", Filename: "cat.png", MimeType: "image/jpeg", Size: 3,
		Data: []byte{1, 2, 3}, Description: "cat.png, 1x1 pixels, PNG",
		Status: models.AttachmentReady,
	}
	if err := env.attRepo.Create(context.Background(), att); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/conversations/"+id.String()+"/messages",
		models.ChatMessageRequest{Content: "what is in this picture?", AttachmentID: &att.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	last := env.provider.lastReq.Messages[len(env.provider.lastReq.Messages)-1]
	if last.Image == nil {
		t.Fatal("vision model should receive the image part")
	}
	if last.Image.MIMEType != "image/jpeg" {
		t.Errorf("unexpected mime type %q", last.Image.MIMEType)
	}
}

func TestSendMessage_ImageAttachmentForTextOnlyModel(t *testing.T) {
	env := setupEnv(t)
	id := env.createConversation(t)

	att := &models.Attachment{
		Kind: "image", Filename: "cat.png", MimeType: "image/jpeg", Size: 3,
		Data: []byte{1, 2, 3}, Description: "cat.png, 1x1 pixels, PNG",
		Status: models.AttachmentReady,
	}
	if err := env.attRepo.Create(context.Background(), att); err != nil {
		t.Fatal(err)
	}

	// GPT-4.1 has no vision support in the catalog.
	rec := env.do(t, http.MethodPost, "/api/v1/conversations/"+id.String()+"/messages",
		models.ChatMessageRequest{Content: "what is in this picture?", Model: "GPT-4.1", AttachmentID: &att.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	last := env.provider.lastReq.Messages[len(env.provider.lastReq.Messages)-1]
	if last.Image != nil {
		t.Error("text-only model must not receive image parts")
	}
	if !strings.Contains(last.Content, "cat.png, 1x1 pixels, PNG") {
		t.Errorf("expected image description framing, got %q", last.Content)
	}
}

func TestDeleteConversation(t *testing.T) {
	env := setupEnv(t)
	id := env.createConversation(t)

	rec := env.do(t, http.MethodDelete, "/api/v1/conversations/"+id.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/conversations/"+id.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete should 404, got %d", rec.Code)
	}
}

func TestExportConversation(t *testing.T) {
	env := setupEnv(t)
	id := env.createConversation(t)
	env.do(t, http.MethodPost, "/api/v1/conversations/"+id.String()+"/messages",
		models.ChatMessageRequest{Content: "hello"})

	rec := env.do(t, http.MethodGet, "/api/v1/conversations/"+id.String()+"/export?format=markdown", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".md") {
		t.Errorf("unexpected disposition %q", cd)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/conversations/"+id.String()+"/export?format=docx", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported format, got %d", rec.Code)
	}
}

func TestListModels(t *testing.T) {
	env := setupEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/models", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Models []models.ModelInfo `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Models) != 5 {
		t.Errorf("expected 5 catalog models, got %d", len(resp.Models))
	}
}

func TestGetModel(t *testing.T) {
	env := setupEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/models/Claude%20Sonnet%204", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var info models.ModelInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Provider != "anthropic" || !info.SupportsVision {
		t.Errorf("unexpected model info: %+v", info)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/models/GPT-9000", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown model, got %d", rec.Code)
	}
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUpload_ImageIsNormalizedInline(t *testing.T) {
	env := setupEnv(t)

	body, contentType := multipartUpload(t, "cat.png", pngBytes(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Attachment.Status != models.AttachmentReady {
		t.Errorf("image should be ready immediately, got %q", resp.Attachment.Status)
	}
	if resp.Job != nil {
		t.Error("image uploads should not create a job")
	}
	if !strings.Contains(resp.Attachment.Description, "cat.png") {
		t.Errorf("unexpected description %q", resp.Attachment.Description)
	}

	// Content round-trips as the normalized image.
	rec = env.do(t, http.MethodGet, "/api/v1/files/"+resp.Attachment.ID.String()+"/content", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestUpload_PDFQueuesExtraction(t *testing.T) {
	env := setupEnv(t)

	body, contentType := multipartUpload(t, "report.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Job == nil {
		t.Fatal("pdf upload should create an extraction job")
	}
	if resp.Job.Status != "queued" {
		t.Errorf("expected queued job, got %q", resp.Job.Status)
	}

	// Job is visible through the jobs endpoint.
	rec = env.do(t, http.MethodGet, "/api/v1/jobs/"+resp.Job.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from jobs endpoint, got %d", rec.Code)
	}
}

func TestUpload_RejectsUnsupportedType(t *testing.T) {
	env := setupEnv(t)

	body, contentType := multipartUpload(t, "notes.docx", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d: %s", rec.Code, rec.Body)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	env := setupEnv(t)
	id := env.createConversation(t)
	env.do(t, http.MethodPost, "/api/v1/conversations/"+id.String()+"/messages",
		models.ChatMessageRequest{Content: "tell me about gophers"})

	t.Run("search", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/history/search?q=gophers", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Results []models.SearchResult `json:"results"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Results) != 1 {
			t.Errorf("expected 1 hit, got %d", len(resp.Results))
		}
	})

	t.Run("search requires query", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/history/search", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("stats", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/history/stats", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var stats models.HistoryStats
		if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
			t.Fatal(err)
		}
		if stats.ConversationCount != 1 || stats.MessageCount != 2 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})

	t.Run("clear", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/v1/history", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		rec = env.do(t, http.MethodGet, "/api/v1/conversations", nil)
		var resp struct {
			Conversations []models.Conversation `json:"conversations"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Conversations) != 0 {
			t.Errorf("expected empty list after clear, got %d", len(resp.Conversations))
		}
	})
}
