package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// FakeClient replays a scripted sequence of JSON responses. Tests use it to
// drive the agent loop offline.
type FakeClient struct {
	mu        sync.Mutex
	responses []json.RawMessage
	calls     int
	err       error
}

func NewFakeClient(responses ...json.RawMessage) *FakeClient {
	return &FakeClient{responses: responses}
}

// NewFakeClientFromStrings is a convenience for literal JSON in tests.
func NewFakeClientFromStrings(responses ...string) *FakeClient {
	raw := make([]json.RawMessage, len(responses))
	for i, r := range responses {
		raw[i] = json.RawMessage(r)
	}
	return NewFakeClient(raw...)
}

// FailWith makes every subsequent call return err.
func (f *FakeClient) FailWith(err error) *FakeClient {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	return f
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

// Calls reports how many generate calls were made.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeClient) GenerateJSON(_ context.Context, _ string, _ any) (json.RawMessage, error) {
	return f.next()
}

func (f *FakeClient) GenerateJSONStream(_ context.Context, _ string, _ any, onChunk func(chunk string)) (json.RawMessage, error) {
	out, err := f.next()
	if err != nil {
		return nil, err
	}
	if onChunk != nil {
		// Split in two so callers exercise multi-chunk assembly.
		mid := len(out) / 2
		onChunk(string(out[:mid]))
		onChunk(string(out[mid:]))
	}
	return out, nil
}

func (f *FakeClient) next() (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.responses) {
		return nil, ErrInvalidJSON
	}
	out := f.responses[f.calls]
	f.calls++
	return out, nil
}
