package core

import (
	"context"
	"strings"
	"sync"

	"github.com/veritasai/veritas/internal/llm"
)

// MockLLM plays back canned responses. ByName routes by substring of the
// user prompt, which keeps multi-file tests deterministic while the
// extraction fan-out runs concurrently.
type MockLLM struct {
	mu          sync.Mutex
	Response    string
	ByName      map[string]string
	Err         error
	Calls       int
	LastRequest llm.Request
}

func (m *MockLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.LastRequest = req
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	for key, resp := range m.ByName {
		if strings.Contains(req.Prompt, key) {
			return resp, nil
		}
	}
	return m.Response, nil
}

// GenerateStream delivers the canned response in two cumulative chunks.
func (m *MockLLM) GenerateStream(ctx context.Context, req llm.Request, fn llm.StreamFunc) (string, error) {
	text, err := m.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if fn != nil {
		if half := len(text) / 2; half > 0 {
			if err := fn(text[:half]); err != nil {
				return "", err
			}
		}
		if err := fn(text); err != nil {
			return "", err
		}
	}
	return text, nil
}
