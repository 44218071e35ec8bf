package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omnichat-backend/internal/config"
	"omnichat-backend/internal/database"
	"omnichat-backend/internal/handlers"
	"omnichat-backend/internal/history"
	"omnichat-backend/internal/repository"
	"omnichat-backend/internal/router"
	"omnichat-backend/internal/services"
	"omnichat-backend/internal/websocket"
	"omnichat-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting OmniChat Backend...")

	// ──── Step 1: Load Configuration ────
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("✗ Configuration failed: %v", err)
	}
	log.Println("✓ Configuration loaded")

	// ──── Step 2: Open History Database ────
	db, err := database.Open(cfg.History.DBPath)
	if err != nil {
		log.Fatalf("✗ Database open failed: %v", err)
	}
	defer db.Close()
	log.Println("✓ SQLite history database opened")

	if err := database.Migrate(db); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	conversationRepo := repository.NewConversationRepo(db)
	messageRepo := repository.NewMessageRepo(db)
	attachmentRepo := repository.NewAttachmentRepo(db)
	jobRepo := repository.NewJobRepo(db)

	// ──── Initialize Services ────
	fileProc := services.NewFileProcessor(cfg.Upload)
	historyManager := history.NewManager(db, conversationRepo, messageRepo, attachmentRepo, cfg.History)

	// ──── Step 3: Start History Maintenance ────
	historyManager.Start()
	log.Printf("✓ History maintenance started (backup every %s, keep %d)", cfg.History.Interval(), cfg.History.BackupsKept)

	// ──── Step 4: Start WebSocket Hub ────
	wsHub := websocket.NewHub()
	log.Println("✓ WebSocket hub started")

	// ──── Step 5: Start Job Worker Pool ────
	workerPool := worker.NewPool(fileProc, jobRepo, attachmentRepo, wsHub, cfg.Worker.Count, cfg.Worker.QueueSize)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.Worker.Count)

	// ──── Initialize Handlers ────
	conversationHandler := handlers.NewConversationHandler(conversationRepo, historyManager)
	chatHandler := handlers.NewChatHandler(cfg.Chat, conversationRepo, messageRepo, attachmentRepo, historyManager, fileProc)
	fileHandler := handlers.NewFileHandler(cfg.Upload, fileProc, attachmentRepo, jobRepo, workerPool)
	jobHandler := handlers.NewJobHandler(jobRepo)
	modelHandler := handlers.NewModelHandler()
	historyHandler := handlers.NewHistoryHandler(historyManager, messageRepo)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(
		conversationHandler,
		chatHandler,
		fileHandler,
		jobHandler,
		modelHandler,
		historyHandler,
		wsHub,
		cfg.Server.RateLimitPerMinute,
		cfg.Server.StaticDir,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		// Writes must outlive the slowest provider call.
		WriteTimeout: cfg.Chat.Timeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		historyManager.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ OmniChat Backend ready on http://localhost:%s", cfg.Server.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Server.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Server.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
