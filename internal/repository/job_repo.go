package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"omnichat-backend/internal/models"
)

type JobRepo struct {
	db *sql.DB
}

func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) Create(ctx context.Context, j *models.Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = "queued"
	}
	j.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, type, status, reference_id, error_message, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID.String(), j.Type, j.Status, j.ReferenceID.String(), j.ErrorMessage, j.CreatedAt, j.CompletedAt,
	)
	return err
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j := &models.Job{}
	var idStr, refStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, type, status, reference_id, error_message, created_at, completed_at
		 FROM jobs WHERE id = ?`, id.String(),
	).Scan(&idStr, &j.Type, &j.Status, &refStr, &j.ErrorMessage, &j.CreatedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	if j.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if j.ReferenceID, err = uuid.Parse(refStr); err != nil {
		return nil, err
	}
	return j, nil
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE id = ?`, status, id.String())
	return err
}

func (r *JobRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'completed', completed_at = ? WHERE id = ?`, now, id.String())
	return err
}

func (r *JobRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'failed', error_message = ?, completed_at = ? WHERE id = ?`,
		errMsg, now, id.String())
	return err
}
