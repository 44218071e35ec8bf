package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"omnichat-backend/internal/models"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, model_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID.String(), c.Title, c.ModelName, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{}
	var idStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.title, c.model_name, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		 FROM conversations c WHERE c.id = ?`, id.String(),
	).Scan(&idStr, &c.Title, &c.ModelName, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount)
	if err != nil {
		return nil, err
	}
	c.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns conversations ordered most recently updated first.
func (r *ConversationRepo) List(ctx context.Context, limit int) ([]*models.Conversation, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.title, c.model_name, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		 FROM conversations c
		 ORDER BY c.updated_at DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Conversation
	for rows.Next() {
		c := &models.Conversation{}
		var idStr string
		if err := rows.Scan(&idStr, &c.Title, &c.ModelName, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount); err != nil {
			return nil, err
		}
		if c.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *ConversationRepo) SetTitle(ctx context.Context, id uuid.UUID, title string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET title = ? WHERE id = ?`, title, id.String())
	return err
}

// Touch bumps updated_at and records the model last used in the conversation.
func (r *ConversationRepo) Touch(ctx context.Context, id uuid.UUID, modelName string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ?, model_name = ? WHERE id = ?`,
		time.Now().UTC(), modelName, id.String())
	return err
}

func (r *ConversationRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ConversationRepo) ClearAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversations`)
	return err
}

func (r *ConversationRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n)
	return n, err
}

// DeleteBeyond removes the oldest-updated conversations past the keep cap.
// Returns how many were deleted.
func (r *ConversationRepo) DeleteBeyond(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id NOT IN (
			SELECT id FROM conversations ORDER BY updated_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOlderThan removes conversations not updated since the cutoff.
func (r *ConversationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
