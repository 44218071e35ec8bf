package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"omnichat-backend/internal/config"
	"omnichat-backend/internal/models"
	"omnichat-backend/internal/repository"
	"omnichat-backend/internal/services"
	"omnichat-backend/internal/worker"
)

type FileHandler struct {
	cfg         config.UploadConfig
	fileProc    *services.FileProcessor
	attachments *repository.AttachmentRepo
	jobs        *repository.JobRepo
	pool        *worker.Pool
}

func NewFileHandler(
	cfg config.UploadConfig,
	fileProc *services.FileProcessor,
	attachments *repository.AttachmentRepo,
	jobs *repository.JobRepo,
	pool *worker.Pool,
) *FileHandler {
	return &FileHandler{
		cfg:         cfg,
		fileProc:    fileProc,
		attachments: attachments,
		jobs:        jobs,
		pool:        pool,
	}
}

// uploadResponse reports the stored attachment plus, for PDFs, the queued
// extraction job the client can poll or watch over the websocket.
type uploadResponse struct {
	Attachment *models.Attachment `json:"attachment"`
	Job        *models.Job        `json:"job,omitempty"`
}

// Upload accepts a multipart form with a "file" field. Images are normalized
// inline and come back ready; PDFs are stored and queued for text extraction.
// An optional "session" field routes progress updates to that websocket session.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// The hard cap is the PDF limit plus multipart overhead; per-kind limits
	// are enforced after the kind is known.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxPDFBytes+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"file": "a file field is required"}, r))
		return
	}
	defer file.Close()

	kind, mimeType, err := h.fileProc.DetectKind(header.Filename)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.fileProc.CheckSize(kind, header.Size); err != nil {
		handleServiceError(w, r, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Could not read uploaded file", r))
		return
	}

	att := &models.Attachment{
		Kind:     kind,
		Filename: header.Filename,
		MimeType: mimeType,
		Size:     header.Size,
		Data:     data,
	}

	if kind == "image" {
		normalized, err := h.fileProc.NormalizeImage(data)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		att.Data = normalized.Data
		att.MimeType = normalized.MIMEType
		att.Description = services.DescribeImage(header.Filename, normalized)
		att.Status = models.AttachmentReady

		if err := h.attachments.Create(r.Context(), att); err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, uploadResponse{Attachment: att})
		return
	}

	// PDF: store raw bytes and hand extraction to the worker pool.
	if err := h.attachments.Create(r.Context(), att); err != nil {
		handleServiceError(w, r, err)
		return
	}

	job := &models.Job{Type: "file-extraction", ReferenceID: att.ID}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.pool.Enqueue(worker.Task{Job: job, Session: r.FormValue("session")}); err != nil {
		failMsg := "processing queue is full"
		h.jobs.MarkFailed(r.Context(), job.ID, failMsg)
		h.attachments.UpdateStatus(r.Context(), att.ID, models.AttachmentFailed, &failMsg)
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, uploadResponse{Attachment: att, Job: job})
}

// GetAttachment returns attachment metadata plus a preview of extracted text
// once a PDF is ready.
func (h *FileHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid attachment id", r))
		return
	}

	att, err := h.attachments.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := map[string]interface{}{"attachment": att}
	if att.Kind == "pdf" && att.ExtractedText != nil {
		preview := *att.ExtractedText
		runes := []rune(preview)
		if h.cfg.PDFPreviewLength > 0 && len(runes) > h.cfg.PDFPreviewLength {
			preview = string(runes[:h.cfg.PDFPreviewLength]) + "..."
		}
		resp["text_preview"] = preview
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetContent serves the attachment payload: the normalized image bytes, or
// the full extracted text of a PDF.
func (h *FileHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid attachment id", r))
		return
	}

	att, err := h.attachments.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	switch att.Kind {
	case "image":
		w.Header().Set("Content-Type", att.MimeType)
		w.Write(att.Data)
	case "pdf":
		if att.ExtractedText == nil {
			writeJSON(w, http.StatusConflict, errorResp("ATTACHMENT_NOT_READY",
				"Text extraction has not completed for this attachment", r))
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(*att.ExtractedText))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Unknown attachment kind", r))
	}
}

type JobHandler struct {
	jobs *repository.JobRepo
}

func NewJobHandler(jobs *repository.JobRepo) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid job id", r))
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
