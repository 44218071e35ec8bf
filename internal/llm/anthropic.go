package llm

import (
	"context"
	"errors"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

type anthropicProvider struct {
	client *anthropic.Client
	spec   *ModelSpec
}

func newAnthropicProvider(apiKey string, spec *ModelSpec) *anthropicProvider {
	return &anthropicProvider{client: anthropic.NewClient(apiKey), spec: spec}
}

func (p *anthropicProvider) Name() string { return p.spec.Name }

func (p *anthropicProvider) Close() error { return nil }

func (p *anthropicProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	msgs := make([]anthropic.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch {
		case m.Role == "assistant":
			msgs = append(msgs, anthropic.NewAssistantTextMessage(m.Content))
		case m.Image != nil:
			msgs = append(msgs, anthropic.Message{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
						anthropic.MessagesContentSourceTypeBase64, m.Image.MIMEType, m.Image.Data)),
					anthropic.NewTextMessageContent(m.Content),
				},
			})
		default:
			msgs = append(msgs, anthropic.NewUserTextMessage(m.Content))
		}
	}

	temp := req.Temperature
	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(p.spec.ModelID),
		Messages:    msgs,
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, errors.New("anthropic: response contained no content blocks")
	}

	return &ChatResponse{Content: resp.Content[0].GetText(), Model: string(resp.Model)}, nil
}
