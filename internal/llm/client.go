package llm

import (
	"context"
)

// Image is an inline image attached to a generation request.
type Image struct {
	MIMEType string // e.g. "image/png"
	Data     []byte
}

// Request is a single generation request. Prompt is required; everything
// else is optional. JSONOutput asks the provider for a bare JSON object on
// providers that support a response format.
type Request struct {
	System      string
	Prompt      string
	Images      []Image
	JSONOutput  bool
	Temperature *float32
}

// StreamFunc receives the cumulative text generated so far, not the latest
// delta. Returning an error aborts the stream.
type StreamFunc func(text string) error

type LLMClient interface {
	Generate(ctx context.Context, req Request) (string, error)
	// GenerateStream behaves like Generate but reports partial output
	// through fn as it arrives. The returned string is the final text.
	GenerateStream(ctx context.Context, req Request, fn StreamFunc) (string, error)
}
