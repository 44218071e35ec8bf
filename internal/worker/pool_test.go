package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"omnichat-backend/internal/config"
	"omnichat-backend/internal/database"
	"omnichat-backend/internal/models"
	"omnichat-backend/internal/repository"
	"omnichat-backend/internal/services"
	"omnichat-backend/internal/websocket"
)

func setupPool(t *testing.T, queueSize int) (*Pool, *repository.JobRepo, *repository.AttachmentRepo) {
	t.Helper()

	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	jobRepo := repository.NewJobRepo(db)
	attRepo := repository.NewAttachmentRepo(db)
	fileProc := services.NewFileProcessor(config.UploadConfig{
		MaxImageBytes: 10 << 20, MaxPDFBytes: 50 << 20, ImageMaxDimension: 64, JPEGQuality: 85,
	})
	pool := NewPool(fileProc, jobRepo, attRepo, websocket.NewHub(), 1, queueSize)
	return pool, jobRepo, attRepo
}

func waitForJobStatus(t *testing.T, jobRepo *repository.JobRepo, id uuid.UUID, want string) *models.Job {
	t.Helper()
	ctx := context.Background()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobRepo.GetByID(ctx, id)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %q", id, want)
	return nil
}

func TestPool_FailsJobOnBadPDF(t *testing.T) {
	pool, jobRepo, attRepo := setupPool(t, 4)
	ctx := context.Background()

	att := &models.Attachment{
		Kind: "pdf", Filename: "broken.pdf", MimeType: "application/pdf",
		Size: 10, Data: []byte("not a pdf"),
	}
	if err := attRepo.Create(ctx, att); err != nil {
		t.Fatal(err)
	}
	job := &models.Job{Type: "file-extraction", ReferenceID: att.ID}
	if err := jobRepo.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	pool.Start()
	defer pool.Stop()
	if err := pool.Enqueue(Task{Job: job}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	done := waitForJobStatus(t, jobRepo, job.ID, "failed")
	if done.ErrorMessage == nil || *done.ErrorMessage == "" {
		t.Error("expected an error message on the failed job")
	}

	updated, err := attRepo.GetByID(ctx, att.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.AttachmentFailed {
		t.Errorf("expected attachment failed, got %q", updated.Status)
	}
}

func TestPool_FailsUnknownJobType(t *testing.T) {
	pool, jobRepo, attRepo := setupPool(t, 4)
	ctx := context.Background()

	att := &models.Attachment{Kind: "pdf", Filename: "x.pdf", MimeType: "application/pdf", Size: 1, Data: []byte("x")}
	if err := attRepo.Create(ctx, att); err != nil {
		t.Fatal(err)
	}
	job := &models.Job{Type: "transmogrify", ReferenceID: att.ID}
	if err := jobRepo.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	pool.Start()
	defer pool.Stop()
	if err := pool.Enqueue(Task{Job: job}); err != nil {
		t.Fatal(err)
	}

	waitForJobStatus(t, jobRepo, job.ID, "failed")
}

func TestPool_EnqueueRejectsWhenFull(t *testing.T) {
	pool, _, _ := setupPool(t, 1)
	// Workers never started, so the single buffered slot fills immediately.

	if err := pool.Enqueue(Task{Job: &models.Job{Type: "file-extraction"}}); err != nil {
		t.Fatalf("first enqueue should succeed: %v", err)
	}
	err := pool.Enqueue(Task{Job: &models.Job{Type: "file-extraction"}})
	var conflict *services.ConflictError
	if !errors.As(err, &conflict) {
		t.Errorf("expected ConflictError when the queue is full, got %v", err)
	}
}
