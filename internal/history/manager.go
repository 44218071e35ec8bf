package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"omnichat-backend/internal/config"
	"omnichat-backend/internal/models"
	"omnichat-backend/internal/repository"
)

const titleMaxRunes = 50

// Manager owns the lifecycle of the history database beyond plain CRUD:
// retention pruning, scheduled backups, exports and statistics.
type Manager struct {
	db            *sql.DB
	conversations *repository.ConversationRepo
	messages      *repository.MessageRepo
	attachments   *repository.AttachmentRepo
	cfg           config.HistoryConfig
	stopChan      chan struct{}
}

func NewManager(
	db *sql.DB,
	conversations *repository.ConversationRepo,
	messages *repository.MessageRepo,
	attachments *repository.AttachmentRepo,
	cfg config.HistoryConfig,
) *Manager {
	return &Manager{
		db:            db,
		conversations: conversations,
		messages:      messages,
		attachments:   attachments,
		cfg:           cfg,
		stopChan:      make(chan struct{}),
	}
}

// TitleFromContent derives a conversation title from its first user message.
func TitleFromContent(content string) string {
	title := strings.TrimSpace(content)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	runes := []rune(title)
	if len(runes) > titleMaxRunes {
		title = string(runes[:titleMaxRunes]) + "..."
	}
	if title == "" {
		title = "Untitled conversation"
	}
	return title
}

// EnsureTitle sets the conversation title from the first user message once.
func (m *Manager) EnsureTitle(ctx context.Context, conv *models.Conversation, content string) {
	if conv.Title != "" {
		return
	}
	if err := m.conversations.SetTitle(ctx, conv.ID, TitleFromContent(content)); err != nil {
		log.Printf("history: failed to set conversation title: %v", err)
	}
}

// Prune enforces the retention policy: a cap on stored conversations, an age
// cutoff, and a sweep of attachments no message ever referenced.
func (m *Manager) Prune(ctx context.Context) error {
	if m.cfg.RetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -m.cfg.RetentionDays)
		removed, err := m.conversations.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("retention prune: %w", err)
		}
		if removed > 0 {
			log.Printf("history: pruned %d conversations older than %d days", removed, m.cfg.RetentionDays)
		}
	}

	removed, err := m.conversations.DeleteBeyond(ctx, m.cfg.MaxConversations)
	if err != nil {
		return fmt.Errorf("cap prune: %w", err)
	}
	if removed > 0 {
		log.Printf("history: pruned %d conversations beyond cap of %d", removed, m.cfg.MaxConversations)
	}

	// Uploads abandoned before ever being sent in a message.
	orphans, err := m.attachments.DeleteOrphansOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("orphan sweep: %w", err)
	}
	if orphans > 0 {
		log.Printf("history: removed %d orphaned attachments", orphans)
	}

	return nil
}

// Stats reports sizes of the persisted history.
func (m *Manager) Stats(ctx context.Context) (*models.HistoryStats, error) {
	stats := &models.HistoryStats{}

	var err error
	if stats.ConversationCount, err = m.conversations.Count(ctx); err != nil {
		return nil, err
	}
	if stats.MessageCount, err = m.messages.Count(ctx); err != nil {
		return nil, err
	}

	oldest, err := m.messages.OldestCreatedAt(ctx)
	if err != nil {
		return nil, err
	}
	if oldest != nil {
		stats.OldestMessageAt = oldest.Format(time.RFC3339)
	}

	if info, err := os.Stat(m.cfg.DBPath); err == nil {
		stats.DatabaseSizeBytes = info.Size()
	}

	return stats, nil
}

// ClearAll wipes every conversation. Attachments cascade through the orphan
// sweep on the next prune; messages cascade immediately.
func (m *Manager) ClearAll(ctx context.Context) error {
	return m.conversations.ClearAll(ctx)
}

// Detail loads a conversation together with its messages.
func (m *Manager) Detail(ctx context.Context, id uuid.UUID) (*models.ConversationDetail, error) {
	conv, err := m.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := m.messages.ListByConversation(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return &models.ConversationDetail{Conversation: *conv, Messages: msgs}, nil
}
