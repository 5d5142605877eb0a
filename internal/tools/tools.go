// Package tools implements the canvas-mutating tool catalogue the agent
// calls during a run. Every tool receives an explicit Context naming the
// conversation it mutates and the sink it publishes update events to, so
// concurrent runs for different conversations never share state.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"canvasmith/internal/design"
	"canvasmith/internal/wire"
)

var ErrToolNotFound = errors.New("tools: tool not found")

// Context carries the per-call bindings a tool needs.
type Context struct {
	ConversationID string
	Events         wire.Sink
}

func (tc Context) emit(event string, data any) {
	if tc.Events != nil {
		tc.Events.Send(event, data)
	}
}

// Spec describes a tool to the model.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Handler executes a tool call. Input is the raw tool_input JSON from the
// model. Domain-level failures come back as a Result with Success=false, not
// as errors, so the model can adapt mid-run.
type Handler func(ctx context.Context, tc Context, input json.RawMessage) (Result, error)

// Tool couples a spec with its handler. NeedsApproval marks tools whose
// invocation suspends the run until the user approves the call.
type Tool struct {
	Spec          Spec
	NeedsApproval bool
	Handler       Handler
}

// Result is the uniform payload handed back to the model after a call.
type Result struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	OperationID string            `json:"operationId,omitempty"`
	Operation   *design.Operation `json:"operation,omitempty"`
	Design      *design.Design    `json:"design,omitempty"`
	PlanID      string            `json:"planId,omitempty"`
}

func softFail(msg string) Result { return Result{Success: false, Message: msg} }

// Registry holds the tool catalogue in registration order.
type Registry struct {
	order []string
	tools map[string]*Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

func (r *Registry) Register(t *Tool) {
	name := strings.TrimSpace(t.Spec.Name)
	if name == "" {
		return
	}
	if _, ok := r.tools[name]; !ok {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[strings.TrimSpace(name)]
	return t, ok
}

// Specs returns the catalogue in registration order for prompt building.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Spec)
	}
	return out
}

// Call executes the named tool and marshals its result.
func (r *Registry) Call(ctx context.Context, tc Context, name string, input json.RawMessage) (json.RawMessage, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, ErrToolNotFound
	}
	res, err := t.Handler(ctx, tc, input)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}
