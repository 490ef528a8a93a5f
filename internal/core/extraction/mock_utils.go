package extraction

import (
	"context"

	"github.com/veritasai/veritas/internal/llm"
)

type MockLLMClient struct {
	Response    string
	Err         error
	LastRequest llm.Request
}

func (m *MockLLMClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.LastRequest = req
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockLLMClient) GenerateStream(ctx context.Context, req llm.Request, fn llm.StreamFunc) (string, error) {
	m.LastRequest = req
	if m.Err != nil {
		return "", m.Err
	}
	if fn != nil {
		if err := fn(m.Response); err != nil {
			return "", err
		}
	}
	return m.Response, nil
}
