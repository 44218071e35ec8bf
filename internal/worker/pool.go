package worker

import (
	"context"
	"fmt"
	"log"

	"omnichat-backend/internal/models"
	"omnichat-backend/internal/repository"
	"omnichat-backend/internal/services"
	"omnichat-backend/internal/websocket"
)

// Task pairs a queued job with the browser session that should receive its
// progress updates.
type Task struct {
	Job     *models.Job
	Session string
}

// Pool runs file-extraction jobs on a fixed set of goroutines fed from an
// in-process buffered queue.
type Pool struct {
	fileProc    *services.FileProcessor
	jobRepo     *repository.JobRepo
	attRepo     *repository.AttachmentRepo
	hub         *websocket.Hub
	jobs        chan Task
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	fileProc *services.FileProcessor,
	jobRepo *repository.JobRepo,
	attRepo *repository.AttachmentRepo,
	hub *websocket.Hub,
	workerCount int,
	queueSize int,
) *Pool {
	return &Pool{
		fileProc:    fileProc,
		jobRepo:     jobRepo,
		attRepo:     attRepo,
		hub:         hub,
		jobs:        make(chan Task, queueSize),
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

// Enqueue adds a task to the queue without blocking. It fails when the queue
// is full so the upload handler can tell the client to retry.
func (p *Pool) Enqueue(task Task) error {
	select {
	case p.jobs <- task:
		return nil
	default:
		return &services.ConflictError{Message: "processing queue is full, try again shortly"}
	}
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		case task := <-p.jobs:
			p.process(id, task)
		}
	}
}

func (p *Pool) process(id int, task Task) {
	ctx := context.Background()
	job := task.Job

	log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)

	p.jobRepo.UpdateStatus(ctx, job.ID, "processing")
	p.attRepo.UpdateStatus(ctx, job.ReferenceID, models.AttachmentProcessing, nil)
	p.publish(task, models.AttachmentProcessing, "")

	var processErr error
	switch job.Type {
	case "file-extraction":
		processErr = p.processExtraction(ctx, job)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if processErr != nil {
		p.handleFailure(ctx, task, processErr)
		return
	}
	p.handleSuccess(ctx, task)
}

func (p *Pool) processExtraction(ctx context.Context, job *models.Job) error {
	att, err := p.attRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get attachment: %w", err)
	}

	text, err := p.fileProc.ExtractPDFText(att.Data)
	if err != nil {
		return err
	}

	if err := p.attRepo.StoreExtractedText(ctx, att.ID, text); err != nil {
		return fmt.Errorf("failed to save extracted text: %w", err)
	}

	log.Printf("Extracted text for attachment %s (%d chars)", att.ID, len(text))
	return nil
}

func (p *Pool) handleSuccess(ctx context.Context, task Task) {
	p.jobRepo.MarkCompleted(ctx, task.Job.ID)
	p.publish(task, models.AttachmentReady, "")
	log.Printf("Job %s completed successfully", task.Job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, task Task, err error) {
	errMsg := err.Error()
	log.Printf("Job %s failed: %s", task.Job.ID, errMsg)

	p.jobRepo.MarkFailed(ctx, task.Job.ID, errMsg)
	p.attRepo.UpdateStatus(ctx, task.Job.ReferenceID, models.AttachmentFailed, &errMsg)
	p.publish(task, models.AttachmentFailed, errMsg)
}

func (p *Pool) publish(task Task, status string, errMsg string) {
	if task.Session == "" {
		return
	}
	p.hub.SendToSession(task.Session, models.WSMessage{
		Type: "attachment_update",
		Payload: models.AttachmentUpdate{
			JobID:        task.Job.ID,
			AttachmentID: task.Job.ReferenceID,
			Status:       status,
			Error:        errMsg,
		},
	})
}
