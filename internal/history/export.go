package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Export renders a conversation in the requested format: "json", "text" or
// "markdown".
func (m *Manager) Export(ctx context.Context, id uuid.UUID, format string) (string, error) {
	detail, err := m.Detail(ctx, id)
	if err != nil {
		return "", err
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(detail, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil

	case "text":
		var b strings.Builder
		for _, msg := range detail.Messages {
			fmt.Fprintf(&b, "[%s] %s: %s\n",
				msg.CreatedAt.Format(time.RFC3339), roleLabel(msg.Role), msg.Content)
			if msg.AttachmentID != nil {
				b.WriteString("  (attachment)\n")
			}
		}
		return b.String(), nil

	case "markdown":
		var b strings.Builder
		fmt.Fprintf(&b, "# %s\n\n", detail.Conversation.Title)
		for _, msg := range detail.Messages {
			fmt.Fprintf(&b, "## %s (%s)\n\n%s\n\n",
				roleLabel(msg.Role), msg.CreatedAt.Format(time.RFC3339), msg.Content)
			if msg.AttachmentID != nil {
				b.WriteString("*attachment included*\n\n")
			}
		}
		return b.String(), nil

	default:
		return "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func roleLabel(role string) string {
	if role == "user" {
		return "User"
	}
	return "Assistant"
}
