package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey string, model string, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIClient{
		client: client,
		model:  model,
	}
}

func (c *OpenAIClient) buildRequest(req Request) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Images) > 0 {
		// Vision input goes through MultiContent with data URIs.
		parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
		for _, img := range req.Images {
			encoded := base64.StdEncoding.EncodeToString(img.Data)
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", img.MIMEType, encoded),
				},
			})
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: req.Prompt,
		})
		user.MultiContent = parts
	} else {
		user.Content = req.Prompt
	}
	messages = append(messages, user)

	out := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if req.JSONOutput {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	return out
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("no response choices")
}

func (c *OpenAIClient) GenerateStream(ctx context.Context, req Request, fn StreamFunc) (string, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req))
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		sb.WriteString(chunk.Choices[0].Delta.Content)
		if fn != nil {
			if err := fn(sb.String()); err != nil {
				return "", err
			}
		}
	}
	return sb.String(), nil
}
