package services

import (
	"fmt"
	"path/filepath"
	"strings"

	"omnichat-backend/internal/config"
	"omnichat-backend/internal/models"
)

// imageExtensions maps accepted image file extensions to their MIME types.
var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// FileProcessor validates uploads and turns them into model-ready content:
// normalized images for vision models, extracted text for PDFs.
type FileProcessor struct {
	cfg config.UploadConfig
}

func NewFileProcessor(cfg config.UploadConfig) *FileProcessor {
	return &FileProcessor{cfg: cfg}
}

// DetectKind classifies an upload by its file extension and returns the kind
// ("image" or "pdf") and MIME type.
func (s *FileProcessor) DetectKind(filename string) (kind, mimeType string, err error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if mime, ok := imageExtensions[ext]; ok {
		return "image", mime, nil
	}
	if ext == ".pdf" {
		return "pdf", "application/pdf", nil
	}
	return "", "", &UnsupportedError{
		Message: fmt.Sprintf("unsupported file type %q: accepted types are png, jpg, jpeg, gif, bmp, webp, pdf", ext),
	}
}

// CheckSize enforces the per-kind upload limits.
func (s *FileProcessor) CheckSize(kind string, size int64) error {
	var limit int64
	switch kind {
	case "image":
		limit = s.cfg.MaxImageBytes
	case "pdf":
		limit = s.cfg.MaxPDFBytes
	default:
		return &UnsupportedError{Message: fmt.Sprintf("unknown file kind %q", kind)}
	}
	if size > limit {
		return &TooLargeError{
			Message: fmt.Sprintf("%s exceeds the %d MB limit for %s uploads", humanSize(size), limit/(1<<20), kind),
		}
	}
	return nil
}

// FrameForModel produces the text framing of an attachment for models that
// consume it as text: extracted PDF content, or a description for images when
// the selected model has no vision support.
func (s *FileProcessor) FrameForModel(att *models.Attachment, supportsVision bool) string {
	switch att.Kind {
	case "pdf":
		if att.ExtractedText == nil {
			return ""
		}
		return fmt.Sprintf("The user attached a PDF document %q. Its extracted text follows:\n\n%s",
			att.Filename, *att.ExtractedText)
	case "image":
		if supportsVision {
			return ""
		}
		return fmt.Sprintf("The user attached an image (%s) that this model cannot view.", att.Description)
	default:
		return ""
	}
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
