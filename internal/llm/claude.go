package llm

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
)

type ClaudeClient struct {
	client *anthropic.Client
	model  string
}

func NewClaudeClient(apiKey string, model string, baseURL string) *ClaudeClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(apiKey, opts...)

	return &ClaudeClient{
		client: client,
		model:  model,
	}
}

func (c *ClaudeClient) Generate(ctx context.Context, req Request) (string, error) {
	// Map extraction needs vision input, which this client does not wire up.
	// Callers that need images should configure the gemini or openai provider.
	if len(req.Images) > 0 {
		return "", fmt.Errorf("image input not supported by claude client")
	}

	msgReq := anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(req.Prompt),
				},
			},
		},
		MaxTokens: 4096,
	}
	if req.System != "" {
		msgReq.System = req.System
	}
	if req.Temperature != nil {
		msgReq.Temperature = req.Temperature
	}

	resp, err := c.client.CreateMessages(ctx, msgReq)
	if err != nil {
		return "", err
	}

	if len(resp.Content) > 0 && resp.Content[0].Text != nil {
		return *resp.Content[0].Text, nil
	}
	return "", fmt.Errorf("no response content")
}

// GenerateStream satisfies LLMClient by running the request in one shot and
// reporting the full text through fn once.
func (c *ClaudeClient) GenerateStream(ctx context.Context, req Request, fn StreamFunc) (string, error) {
	text, err := c.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if fn != nil {
		if err := fn(text); err != nil {
			return "", err
		}
	}
	return text, nil
}
