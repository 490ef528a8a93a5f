package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey string, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

func (c *GeminiClient) prepare(req Request) (*genai.GenerativeModel, []genai.Part) {
	model := c.client.GenerativeModel(c.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.JSONOutput {
		model.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}

	parts := make([]genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}
	parts = append(parts, genai.Text(req.Prompt))
	return model, parts
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	model, parts := c.prepare(req)
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}

	text := geminiText(resp)
	if text == "" {
		return "", fmt.Errorf("no response candidates or content")
	}
	return text, nil
}

func (c *GeminiClient) GenerateStream(ctx context.Context, req Request, fn StreamFunc) (string, error) {
	model, parts := c.prepare(req)
	iter := model.GenerateContentStream(ctx, parts...)

	var sb strings.Builder
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", err
		}

		chunk := geminiText(resp)
		if chunk == "" {
			continue
		}
		sb.WriteString(chunk)
		if fn != nil {
			if err := fn(sb.String()); err != nil {
				return "", err
			}
		}
	}
	return sb.String(), nil
}

// geminiText concatenates the text parts of every candidate.
func geminiText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
	}
	return sb.String()
}
