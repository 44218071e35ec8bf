package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"omnichat-backend/internal/handlers"
	"omnichat-backend/internal/middleware"
	"omnichat-backend/internal/websocket"
)

func New(
	conversationHandler *handlers.ConversationHandler,
	chatHandler *handlers.ChatHandler,
	fileHandler *handlers.FileHandler,
	jobHandler *handlers.JobHandler,
	modelHandler *handlers.ModelHandler,
	historyHandler *handlers.HistoryHandler,
	wsHub *websocket.Hub,
	rateLimitPerMinute int,
	staticDir string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(""))

	// Chat and upload rate limiter, per client IP
	chatLimiter := middleware.NewRateLimiter(rateLimitPerMinute, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Conversation Routes ────
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)
			r.Get("/{id}", conversationHandler.Get)
			r.Delete("/{id}", conversationHandler.Delete)
			r.Get("/{id}/export", conversationHandler.Export)

			r.Group(func(r chi.Router) {
				r.Use(chatLimiter.Middleware)
				r.Post("/{id}/messages", chatHandler.SendMessage)
			})
		})

		// ──── Model Catalog ────
		r.Get("/models", modelHandler.List)
		r.Get("/models/{name}", modelHandler.Get)

		// ──── File Routes ────
		r.Route("/files", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(chatLimiter.Middleware)
				r.Post("/", fileHandler.Upload)
			})
			r.Get("/{id}", fileHandler.GetAttachment)
			r.Get("/{id}/content", fileHandler.GetContent)
		})

		// ──── History Routes ────
		r.Route("/history", func(r chi.Router) {
			r.Get("/search", historyHandler.Search)
			r.Get("/stats", historyHandler.Stats)
			r.Delete("/", historyHandler.Clear)
		})

		// ──── Job Routes ────
		r.Get("/jobs/{id}", jobHandler.GetJob)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	// Frontend
	if staticDir != "" {
		fs := http.FileServer(http.Dir(staticDir))
		r.Handle("/*", fs)
	}

	return r
}
