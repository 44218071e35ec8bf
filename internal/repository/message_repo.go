package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"omnichat-backend/internal/models"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append persists a message. Every turn is written through here as it happens,
// which is what keeps a crash from losing more than the in-flight reply.
func (r *MessageRepo) Append(ctx context.Context, m *models.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	var attachmentID *string
	if m.AttachmentID != nil {
		s := m.AttachmentID.String()
		attachmentID = &s
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, attachment_id, model_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ConversationID.String(), m.Role, m.Content, attachmentID, m.ModelName, m.CreatedAt,
	)
	if err != nil {
		return err
	}

	m.ID, err = res.LastInsertId()
	return err
}

// ListByConversation returns messages in insertion order. A non-positive limit
// returns everything; otherwise the most recent limit messages are returned,
// still oldest first.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	query := `SELECT id, conversation_id, role, content, attachment_id, model_name, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY id ASC`
	args := []interface{}{conversationID.String()}

	if limit > 0 {
		query = `SELECT id, conversation_id, role, content, attachment_id, model_name, created_at
			 FROM (
				SELECT id, conversation_id, role, content, attachment_id, model_name, created_at
				FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
			 ) ORDER BY id ASC`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Search finds messages whose content matches the query, newest first.
func (r *MessageRepo) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT m.conversation_id, c.title, m.id, m.role, m.content, m.created_at
		 FROM messages m
		 JOIN conversations c ON c.id = m.conversation_id
		 WHERE m.content LIKE ? ESCAPE '\'
		 ORDER BY m.id DESC
		 LIMIT ?`,
		"%"+escapeLike(query)+"%", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var res models.SearchResult
		var convID, content string
		if err := rows.Scan(&convID, &res.ConversationTitle, &res.MessageID, &res.Role, &content, &res.CreatedAt); err != nil {
			return nil, err
		}
		if res.ConversationID, err = uuid.Parse(convID); err != nil {
			return nil, err
		}
		res.Snippet = snippet(content, 160)
		res.CreatedAt = res.CreatedAt.UTC()
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *MessageRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

func (r *MessageRepo) OldestCreatedAt(ctx context.Context) (*time.Time, error) {
	// MIN(created_at) strips the column's TIMESTAMP decltype, so the driver
	// returns a raw string; selecting the column directly keeps time parsing.
	var t time.Time
	err := r.db.QueryRowContext(ctx, `SELECT created_at FROM messages ORDER BY created_at LIMIT 1`).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ts := t.UTC()
	return &ts, nil
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var convID string
		var attachmentID *string
		if err := rows.Scan(&m.ID, &convID, &m.Role, &m.Content, &attachmentID, &m.ModelName, &m.CreatedAt); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(convID)
		if err != nil {
			return nil, err
		}
		m.ConversationID = parsed
		if attachmentID != nil {
			aid, err := uuid.Parse(*attachmentID)
			if err != nil {
				return nil, err
			}
			m.AttachmentID = &aid
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
