package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"canvasmith/internal/design"
	"canvasmith/internal/plan"
	"canvasmith/internal/wire"
)

func frame(t *testing.T, typ string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(wire.Event{Type: typ, Data: data})
	require.NoError(t, err)
	return raw
}

func TestStreamingAssignsConversation(t *testing.T) {
	r := NewReconciler()
	require.NoError(t, r.Apply(frame(t, wire.EventStreaming, wire.Streaming{ConversationID: "conv-1"})))

	st := r.Snapshot()
	require.Equal(t, "conv-1", st.ConversationID)
	require.True(t, st.Streaming)
}

func TestChunksAccumulateUntilComplete(t *testing.T) {
	r := NewReconciler()
	require.NoError(t, r.Apply(frame(t, wire.EventStreaming, wire.Streaming{ConversationID: "conv-1"})))
	require.NoError(t, r.Apply(frame(t, wire.EventChunk, wire.Chunk{ConversationID: "conv-1", Text: "Adding a "})))
	require.NoError(t, r.Apply(frame(t, wire.EventChunk, wire.Chunk{ConversationID: "conv-1", Text: "rectangle."})))

	st := r.Snapshot()
	require.Equal(t, "Adding a rectangle.", st.Partial)

	require.NoError(t, r.Apply(frame(t, wire.EventComplete, wire.Complete{
		ConversationID: "conv-1",
		Response:       "Done! Added the rectangle.",
	})))

	st = r.Snapshot()
	require.False(t, st.Streaming)
	require.Empty(t, st.Partial)
	require.Equal(t, "Done! Added the rectangle.", st.Response)
	last := st.Timeline[len(st.Timeline)-1]
	require.Equal(t, EntryAssistant, last.Kind)
}

func TestDesignUpdateTriggersRebuild(t *testing.T) {
	r := NewReconciler()
	var rebuilt *design.Design
	r.Rebuild = func(d *design.Design) { rebuilt = d }

	d := &design.Design{ID: "design-1", Width: 1080, Height: 1080}
	require.NoError(t, r.Apply(frame(t, wire.EventDesignUpdate, wire.DesignUpdate{
		ConversationID: "conv-1",
		Design:         d,
	})))

	require.NotNil(t, rebuilt)
	require.Equal(t, "design-1", rebuilt.ID)
	require.Equal(t, 1080, r.Snapshot().Design.Width)
}

func TestApprovalRequiredSetsPending(t *testing.T) {
	r := NewReconciler()
	require.NoError(t, r.Apply(frame(t, wire.EventApprovalRequired, wire.ApprovalRequired{
		ConversationID: "conv-1",
		Pending:        []wire.PendingCall{{CallID: "call-1", Name: "remove-operation"}},
	})))

	st := r.Snapshot()
	require.True(t, st.AwaitingApproval())
	require.Equal(t, "call-1", st.PendingApprovals[0].CallID)
	require.False(t, st.Streaming)

	r.ClearPending()
	require.False(t, r.Snapshot().AwaitingApproval())
}

func TestPlanLifecycleMirrorsStatus(t *testing.T) {
	r := NewReconciler()
	p := &plan.Plan{DesignType: "Instagram Post", Status: plan.StatusProposed}
	require.NoError(t, r.Apply(frame(t, wire.EventPlanProposal, wire.PlanProposal{
		ConversationID: "conv-1",
		Plan:           p,
	})))
	require.Equal(t, plan.StatusProposed, r.Snapshot().Plan.Status)

	require.NoError(t, r.Apply(frame(t, wire.EventPlanApproved, wire.PlanDecision{ConversationID: "conv-1"})))
	require.Equal(t, plan.StatusApproved, r.Snapshot().Plan.Status)
}

func TestDesignSavedRecordsVersions(t *testing.T) {
	r := NewReconciler()
	require.NoError(t, r.Apply(frame(t, wire.EventDesignSaved, wire.DesignSaved{
		Success:  true,
		Version:  2,
		Versions: []design.VersionInfo{{Version: 1}, {Version: 2}},
		Design:   &design.Design{ID: "design-1"},
	})))

	st := r.Snapshot()
	require.Len(t, st.Versions, 2)
	require.Equal(t, "design-1", st.Design.ID)
}

func TestFlatErrorFrame(t *testing.T) {
	r := NewReconciler()
	require.NoError(t, r.Apply([]byte(`{"error":"empty_message"}`)))

	st := r.Snapshot()
	require.Equal(t, "empty_message", st.LastError)
	require.Equal(t, EntryError, st.Timeline[len(st.Timeline)-1].Kind)
}

func TestUnknownEventIgnored(t *testing.T) {
	r := NewReconciler()
	require.NoError(t, r.Apply([]byte(`{"type":"metrics","data":{"n":1}}`)))
	require.Error(t, r.Apply([]byte(`{}`)))
	require.Error(t, r.Apply([]byte(`not json`)))
}
