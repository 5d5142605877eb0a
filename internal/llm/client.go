// Package llm abstracts the model provider behind a small JSON-in/JSON-out
// client so the agent loop can run against Gemini or a scripted fake.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrInvalidJSON = errors.New("llm: model returned no usable JSON")

// Client is a JSON-mode chat model.
type Client interface {
	Name() string
	// GenerateJSON concatenates prompt and input and returns the model's
	// JSON response.
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	// GenerateJSONStream does the same but forwards partial text chunks to
	// onChunk as they arrive. The final complete JSON is still returned.
	GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(chunk string)) (json.RawMessage, error)
	Close() error
}
