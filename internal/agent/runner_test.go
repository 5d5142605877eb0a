package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvasmith/internal/design"
	"canvasmith/internal/llm"
	"canvasmith/internal/plan"
	"canvasmith/internal/tools"
	"canvasmith/internal/wire"
)

type recordedEvent struct {
	Event string
	Data  any
}

type recorderSink struct {
	events []recordedEvent
}

func (r *recorderSink) Send(event string, data any) {
	r.events = append(r.events, recordedEvent{Event: event, Data: data})
}

func (r *recorderSink) ofType(event string) []recordedEvent {
	var out []recordedEvent
	for _, ev := range r.events {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

func newRunner(client llm.Client) (*Runner, *design.Store) {
	designs := design.NewStore()
	plans := plan.NewRegistry()
	return &Runner{
		LLM:   client,
		Tools: tools.NewCatalog(designs, plans).Registry(),
		Log:   zerolog.Nop(),
	}, designs
}

func TestRunFinalImmediately(t *testing.T) {
	r, _ := newRunner(llm.NewFakeClientFromStrings(
		`{"action":"final","final":{"message":"What would you like to design?"}}`,
	))
	sink := &recorderSink{}
	out, err := r.Run(context.Background(), RunInput{
		ConversationID: "conv-1",
		History:        []Message{{Role: "user", Content: "hi"}},
		Sink:           sink,
	})
	require.NoError(t, err)
	assert.False(t, out.Interrupted())
	assert.Equal(t, "What would you like to design?", out.Response)
	require.Len(t, out.History, 2)
	assert.Equal(t, "assistant", out.History[1].Role)
	assert.NotEmpty(t, sink.ofType(wire.EventChunk))
}

func TestRunExecutesToolThenFinal(t *testing.T) {
	r, designs := newRunner(llm.NewFakeClientFromStrings(
		`{"action":"tool","tool_name":"add-rectangle","tool_input":{"x":0,"y":0,"width":100,"height":50,"fill":"#FF0000"}}`,
		`{"action":"final","final":{"message":"Added a rectangle."}}`,
	))
	sink := &recorderSink{}
	out, err := r.Run(context.Background(), RunInput{
		ConversationID: "conv-1",
		History:        []Message{{Role: "user", Content: "add a red rectangle"}},
		Sink:           sink,
	})
	require.NoError(t, err)
	assert.Equal(t, "Added a rectangle.", out.Response)

	d := designs.Get("conv-1")
	require.NotNil(t, d)
	require.Len(t, d.Operations, 1)
	assert.Equal(t, "#FF0000", d.Operations[0].Object.Fill)

	assert.Len(t, sink.ofType(wire.EventToolCall), 1)
	assert.Len(t, sink.ofType(wire.EventToolResult), 1)
	assert.Len(t, sink.ofType(wire.EventDesignUpdate), 1)

	// Tool result lands in history between user message and final answer.
	require.Len(t, out.History, 3)
	assert.Equal(t, "tool", out.History[1].Role)
	assert.Equal(t, "add-rectangle", out.History[1].ToolName)
}

func TestRunSuspendsOnApprovalTool(t *testing.T) {
	r, designs := newRunner(llm.NewFakeClientFromStrings(
		`{"action":"tool","tool_name":"add-circle","tool_input":{"x":5,"y":5,"radius":10}}`,
		`{"action":"tool","tool_name":"remove-operation","tool_input":{"operationId":"PLACEHOLDER"}}`,
	))
	sink := &recorderSink{}
	out, err := r.Run(context.Background(), RunInput{
		ConversationID: "conv-1",
		History:        []Message{{Role: "user", Content: "add then remove"}},
		Sink:           sink,
	})
	require.NoError(t, err)
	require.True(t, out.Interrupted())
	assert.Empty(t, out.Response)
	require.Len(t, out.State.Pending, 1)
	assert.Equal(t, "remove-operation", out.State.Pending[0].Name)
	assert.Len(t, sink.ofType(wire.EventApprovalRequired), 1)

	// The circle was added before the suspension; the removal has not run.
	require.Len(t, designs.Get("conv-1").Operations, 1)
}

func TestResumeApprovedExecutesPendingCall(t *testing.T) {
	designs := design.NewStore()
	plans := plan.NewRegistry()
	registry := tools.NewCatalog(designs, plans).Registry()

	d := designs.Append("conv-1", design.Operation{ID: "op-1", Type: design.OpShape, Object: &design.Object{Type: "circle"}})
	require.Len(t, d.Operations, 1)

	r := &Runner{
		LLM:   llm.NewFakeClientFromStrings(`{"action":"final","final":{"message":"Removed it."}}`),
		Tools: registry,
		Log:   zerolog.Nop(),
	}
	state := &RunState{
		History: []Message{{Role: "user", Content: "remove op-1"}},
		Pending: []wire.PendingCall{{CallID: "call-1", Name: "remove-operation", Input: json.RawMessage(`{"operationId":"op-1"}`)}},
		Turn:    1,
	}

	// Snapshot survives a JSON round-trip, as the session layer stores it.
	blob, err := json.Marshal(state)
	require.NoError(t, err)
	var restored RunState
	require.NoError(t, json.Unmarshal(blob, &restored))

	sink := &recorderSink{}
	out, err := r.Resume(context.Background(), RunInput{ConversationID: "conv-1", Sink: sink}, &restored,
		[]wire.Decision{{CallID: "call-1", Decision: wire.DecisionApproved}})
	require.NoError(t, err)
	assert.False(t, out.Interrupted())
	assert.Equal(t, "Removed it.", out.Response)
	assert.Empty(t, designs.Get("conv-1").Operations)
}

func TestResumeRejectedSkipsPendingCall(t *testing.T) {
	designs := design.NewStore()
	plans := plan.NewRegistry()
	designs.Append("conv-1", design.Operation{ID: "op-1", Type: design.OpShape, Object: &design.Object{Type: "circle"}})

	r := &Runner{
		LLM:   llm.NewFakeClientFromStrings(`{"action":"final","final":{"message":"Left it alone."}}`),
		Tools: tools.NewCatalog(designs, plans).Registry(),
		Log:   zerolog.Nop(),
	}
	state := &RunState{
		History: []Message{{Role: "user", Content: "remove op-1"}},
		Pending: []wire.PendingCall{{CallID: "call-1", Name: "remove-operation", Input: json.RawMessage(`{"operationId":"op-1"}`)}},
		Turn:    1,
	}
	out, err := r.Resume(context.Background(), RunInput{ConversationID: "conv-1"}, state,
		[]wire.Decision{{CallID: "call-1", Decision: wire.DecisionRejected}})
	require.NoError(t, err)
	assert.Equal(t, "Left it alone.", out.Response)
	// Rejected call never ran.
	require.Len(t, designs.Get("conv-1").Operations, 1)

	var rejected bool
	for _, m := range out.History {
		if m.Role == "tool" && m.ToolName == "remove-operation" {
			var res tools.Result
			require.NoError(t, json.Unmarshal(m.ToolOutput, &res))
			assert.False(t, res.Success)
			rejected = true
		}
	}
	assert.True(t, rejected)
}

func TestRunMaxTurns(t *testing.T) {
	r, _ := newRunner(llm.NewFakeClientFromStrings(
		`{"action":"tool","tool_name":"add-circle","tool_input":{"x":1,"y":1,"radius":1}}`,
		`{"action":"tool","tool_name":"add-circle","tool_input":{"x":1,"y":1,"radius":1}}`,
	))
	_, err := r.Run(context.Background(), RunInput{
		ConversationID: "conv-1",
		History:        []Message{{Role: "user", Content: "loop"}},
		MaxTurns:       2,
	})
	assert.ErrorIs(t, err, ErrMaxTurns)
}

func TestRunUnknownToolContinues(t *testing.T) {
	r, _ := newRunner(llm.NewFakeClientFromStrings(
		`{"action":"tool","tool_name":"no-such-tool","tool_input":{}}`,
		`{"action":"final","final":{"message":"done"}}`,
	))
	out, err := r.Run(context.Background(), RunInput{ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.Equal(t, "done", out.Response)
}

func TestParseActionFallbacks(t *testing.T) {
	env, err := ParseAction(json.RawMessage(`{"message":"plain output"}`))
	require.NoError(t, err)
	assert.Equal(t, "final", env.Action)
	assert.Equal(t, "plain output", FinalText(env.Final))

	env, err = ParseAction(json.RawMessage(`{"tool_name":"add-text","tool_input":{"x":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "tool", env.Action)

	_, err = ParseAction(json.RawMessage(`{"action":"dance"}`))
	assert.Error(t, err)

	assert.Equal(t, "hi", FinalText(json.RawMessage(`"hi"`)))
}
