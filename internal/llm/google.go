package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type googleProvider struct {
	client *genai.Client
	spec   *ModelSpec
}

func newGoogleProvider(ctx context.Context, apiKey string, spec *ModelSpec) (*googleProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &googleProvider{client: client, spec: spec}, nil
}

func (p *googleProvider) Name() string { return p.spec.Name }

func (p *googleProvider) Close() error { return p.client.Close() }

func (p *googleProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("google: empty message list")
	}

	model := p.client.GenerativeModel(p.spec.ModelID)
	model.SetTemperature(req.Temperature)
	model.SetMaxOutputTokens(int32(req.MaxTokens))
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	cs := model.StartChat()
	for _, m := range req.Messages[:len(req.Messages)-1] {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: messageParts(m)})
	}

	resp, err := cs.SendMessage(ctx, messageParts(req.Messages[len(req.Messages)-1])...)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return nil, errors.New("google: response contained no text")
	}
	return &ChatResponse{Content: text, Model: p.spec.ModelID}, nil
}

func messageParts(m Message) []genai.Part {
	parts := []genai.Part{genai.Text(m.Content)}
	if m.Image != nil {
		// genai wants the bare image subtype, e.g. "png" not "image/png".
		subtype := strings.TrimPrefix(m.Image.MIMEType, "image/")
		parts = append(parts, genai.ImageData(subtype, m.Image.Data))
	}
	return parts
}

func extractText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}
