package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText pulls the text content out of a PDF, page by page, with
// "--- Page N ---" separators. The plain-text extractor handles most
// documents; when it yields nothing at all, a second pass reassembles text
// row by row, which recovers documents with unusual content streams.
func (s *FileProcessor) ExtractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ValidationError{Fields: map[string]string{
			"file": fmt.Sprintf("could not open PDF: %v", err),
		}}
	}

	text := pickExtraction(extractPlainText(reader), func() string {
		return extractByRows(reader)
	})

	text = normalizeExtractedText(text)
	if text == "" {
		return "", &UnsupportedError{Message: "no extractable text found in PDF; scanned documents are not supported"}
	}
	return text, nil
}

// pickExtraction prefers the plain-text pass and runs the row-based pass
// only when the first produced nothing across the whole document.
func pickExtraction(plain string, rows func() string) string {
	if strings.TrimSpace(plain) == "" {
		return rows()
	}
	return plain
}

func extractPlainText(reader *pdf.Reader) string {
	var b strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(content) == "" {
			continue
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s\n", pageIndex, content)
	}
	return b.String()
}

func extractByRows(reader *pdf.Reader) string {
	var b strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}

		var pageText strings.Builder
		for _, row := range rows {
			for _, word := range row.Content {
				pageText.WriteString(word.S)
				pageText.WriteString(" ")
			}
			pageText.WriteString("\n")
		}
		if strings.TrimSpace(pageText.String()) == "" {
			continue
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s\n", pageIndex, pageText.String())
	}
	return b.String()
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}
