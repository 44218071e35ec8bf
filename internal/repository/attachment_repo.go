package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"omnichat-backend/internal/models"
)

type AttachmentRepo struct {
	db *sql.DB
}

func NewAttachmentRepo(db *sql.DB) *AttachmentRepo {
	return &AttachmentRepo{db: db}
}

func (r *AttachmentRepo) Create(ctx context.Context, a *models.Attachment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = models.AttachmentPending
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attachments (id, kind, filename, mime_type, size, data, extracted_text, description, status, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.Kind, a.Filename, a.MimeType, a.Size, a.Data,
		a.ExtractedText, a.Description, a.Status, a.Error, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (r *AttachmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Attachment, error) {
	a := &models.Attachment{}
	var idStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, kind, filename, mime_type, size, data, extracted_text, description, status, error, created_at, updated_at
		 FROM attachments WHERE id = ?`, id.String(),
	).Scan(&idStr, &a.Kind, &a.Filename, &a.MimeType, &a.Size, &a.Data,
		&a.ExtractedText, &a.Description, &a.Status, &a.Error, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AttachmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errMsg *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE attachments SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id.String())
	return err
}

// StoreExtractedText records the extraction result and flips the attachment to ready.
func (r *AttachmentRepo) StoreExtractedText(ctx context.Context, id uuid.UUID, text string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE attachments SET extracted_text = ?, status = ?, error = NULL, updated_at = ? WHERE id = ?`,
		text, models.AttachmentReady, time.Now().UTC(), id.String())
	return err
}

func (r *AttachmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id.String())
	return err
}

// DeleteOrphansOlderThan removes attachments never referenced by a message.
// Abandoned uploads would otherwise accumulate image blobs forever.
func (r *AttachmentRepo) DeleteOrphansOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM attachments
		 WHERE created_at < ?
		   AND id NOT IN (SELECT attachment_id FROM messages WHERE attachment_id IS NOT NULL)`,
		cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
