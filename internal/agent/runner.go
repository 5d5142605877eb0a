// Package agent drives one run of the model against the tool catalogue:
// prompt, parse the action envelope, execute or suspend on tools, repeat
// until a final answer or the turn budget runs out.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"canvasmith/internal/llm"
	"canvasmith/internal/tools"
	"canvasmith/internal/wire"
)

var ErrMaxTurns = errors.New("agent: max turns reached")

const DefaultMaxTurns = 50

// Message is one entry of the conversation history.
type Message struct {
	Role       string          `json:"role"` // user | assistant | tool
	Content    string          `json:"content,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolInput  json.RawMessage `json:"toolInput,omitempty"`
	ToolOutput json.RawMessage `json:"toolOutput,omitempty"`
}

// RunState is the serializable snapshot of a run. A run that suspends on
// tool approvals is resumed from exactly this state.
type RunState struct {
	History []Message          `json:"history"`
	Pending []wire.PendingCall `json:"pending,omitempty"`
	Turn    int                `json:"turn"`
}

// RunInput binds a run to its conversation and event sink.
type RunInput struct {
	ConversationID string
	History        []Message
	MaxTurns       int
	Sink           wire.Sink
}

// RunOutput is the result of a run. State is non-nil when the run suspended
// for approvals; Response is only set on normal completion.
type RunOutput struct {
	Response string
	History  []Message
	State    *RunState
}

// Interrupted reports whether the run is waiting on user approvals.
func (o *RunOutput) Interrupted() bool { return o.State != nil && len(o.State.Pending) > 0 }

// Runner executes agent runs. Safe for concurrent use across conversations.
type Runner struct {
	LLM   llm.Client
	Tools *tools.Registry
	Log   zerolog.Logger
}

// Run starts a fresh run over the given history.
func (r *Runner) Run(ctx context.Context, in RunInput) (*RunOutput, error) {
	state := &RunState{History: append([]Message(nil), in.History...)}
	return r.loop(ctx, in, state)
}

// Resume continues a suspended run: each pending call is executed or
// discarded per the user's decisions, then the loop picks up where it left
// off. Calls without a matching decision are treated as rejected.
func (r *Runner) Resume(ctx context.Context, in RunInput, state *RunState, decisions []wire.Decision) (*RunOutput, error) {
	verdicts := make(map[string]string, len(decisions))
	for _, d := range decisions {
		verdicts[d.CallID] = d.Decision
	}
	tc := tools.Context{ConversationID: in.ConversationID, Events: in.Sink}
	pending := state.Pending
	state.Pending = nil
	for _, call := range pending {
		if verdicts[call.CallID] == wire.DecisionApproved {
			r.execute(ctx, in, tc, state, call)
			continue
		}
		out, _ := json.Marshal(tools.Result{Success: false, Message: "Tool call rejected by the user"})
		state.History = append(state.History, Message{
			Role:       "tool",
			ToolName:   call.Name,
			ToolInput:  call.Input,
			ToolOutput: out,
		})
		r.send(in, wire.EventToolResult, wire.ToolResultEvent{
			ConversationID: in.ConversationID,
			CallID:         call.CallID,
			Name:           call.Name,
			Output:         out,
		})
	}
	return r.loop(ctx, in, state)
}

func (r *Runner) loop(ctx context.Context, in RunInput, state *RunState) (*RunOutput, error) {
	maxTurns := in.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	prompt := BuildPrompt(r.Tools.Specs())
	tc := tools.Context{ConversationID: in.ConversationID, Events: in.Sink}

	for state.Turn < maxTurns {
		state.Turn++
		raw, err := r.LLM.GenerateJSONStream(ctx, prompt, promptInput{History: state.History}, func(chunk string) {
			r.send(in, wire.EventChunk, wire.Chunk{ConversationID: in.ConversationID, Text: chunk})
		})
		if err != nil {
			return nil, err
		}
		action, err := ParseAction(raw)
		if err != nil {
			return nil, err
		}
		switch action.Action {
		case "final":
			text := FinalText(action.Final)
			state.History = append(state.History, Message{Role: "assistant", Content: text})
			return &RunOutput{Response: text, History: state.History}, nil
		case "tool":
			tool, ok := r.Tools.Get(action.ToolName)
			if !ok {
				out, _ := json.Marshal(tools.Result{Success: false, Message: fmt.Sprintf("Unknown tool %q", action.ToolName)})
				state.History = append(state.History, Message{Role: "tool", ToolName: action.ToolName, ToolOutput: out})
				continue
			}
			call := wire.PendingCall{CallID: uuid.NewString(), Name: action.ToolName, Input: action.ToolInput}
			r.send(in, wire.EventToolCall, wire.ToolCallEvent{
				ConversationID: in.ConversationID,
				CallID:         call.CallID,
				Name:           call.Name,
				Input:          call.Input,
			})
			if tool.NeedsApproval {
				state.Pending = append(state.Pending, call)
				r.send(in, wire.EventApprovalRequired, wire.ApprovalRequired{
					ConversationID: in.ConversationID,
					Pending:        state.Pending,
				})
				return &RunOutput{History: state.History, State: state}, nil
			}
			r.execute(ctx, in, tc, state, call)
		}
	}
	return nil, ErrMaxTurns
}

func (r *Runner) execute(ctx context.Context, in RunInput, tc tools.Context, state *RunState, call wire.PendingCall) {
	out, err := r.Tools.Call(ctx, tc, call.Name, call.Input)
	msg := Message{Role: "tool", ToolName: call.Name, ToolInput: call.Input, ToolOutput: out}
	ev := wire.ToolResultEvent{
		ConversationID: in.ConversationID,
		CallID:         call.CallID,
		Name:           call.Name,
		Output:         out,
	}
	if err != nil {
		r.Log.Warn().Err(err).Str("tool", call.Name).Msg("tool call failed")
		msg.Content = err.Error()
		ev.Error = err.Error()
	}
	state.History = append(state.History, msg)
	r.send(in, wire.EventToolResult, ev)
}

func (r *Runner) send(in RunInput, event string, data any) {
	if in.Sink != nil {
		in.Sink.Send(event, data)
	}
}
