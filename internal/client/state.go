// Package client is the Go client for the canvas gateway: a websocket
// connection plus a reconciler that folds the server's event stream into a
// local mirror of the conversation and the design document.
package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"canvasmith/internal/design"
	"canvasmith/internal/plan"
	"canvasmith/internal/wire"
)

// EntryKind tags timeline entries.
type EntryKind string

const (
	EntryUser       EntryKind = "user"
	EntryAssistant  EntryKind = "assistant"
	EntryToolCall   EntryKind = "tool_call"
	EntryToolResult EntryKind = "tool_result"
	EntryNotice     EntryKind = "notice"
	EntryError      EntryKind = "error"
)

// TimelineEntry is one row of the conversation transcript as the client
// shows it.
type TimelineEntry struct {
	Kind EntryKind
	Text string
	Tool string
}

// State is the client-side mirror of a conversation. It is rebuilt purely
// from the event stream; the client never mutates the design directly.
type State struct {
	ConversationID   string
	Connected        bool
	Streaming        bool
	Partial          string
	Response         string
	Timeline         []TimelineEntry
	Design           *design.Design
	Plan             *plan.Plan
	PendingApprovals []wire.PendingCall
	Versions         []design.VersionInfo
	LastError        string
}

// AwaitingApproval reports whether the run is suspended on tool approvals.
func (s State) AwaitingApproval() bool {
	return len(s.PendingApprovals) > 0
}

// Reconciler folds raw server frames into a State. Safe for concurrent use;
// the read loop applies while the UI snapshots.
type Reconciler struct {
	mu    sync.Mutex
	state State

	// Rebuild, when set, fires after every event that changed the design.
	Rebuild func(*design.Design)
}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Snapshot returns a copy of the current state. The Design pointer inside is
// shared; callers treat it as read-only.
func (r *Reconciler) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.state
	out.Timeline = append([]TimelineEntry(nil), r.state.Timeline...)
	out.PendingApprovals = append([]wire.PendingCall(nil), r.state.PendingApprovals...)
	out.Versions = append([]design.VersionInfo(nil), r.state.Versions...)
	return out
}

// SetConnected flips the transport flag.
func (r *Reconciler) SetConnected(up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Connected = up
}

// Apply folds one raw server frame into the state. Frames are either the
// {type, data} envelope or the flat {"error": code} reply.
func (r *Reconciler) Apply(raw []byte) error {
	var env struct {
		Type  string          `json:"type"`
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("client: decode frame: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if env.Type == "" {
		if env.Error == "" {
			return fmt.Errorf("client: frame has neither type nor error")
		}
		r.state.LastError = env.Error
		r.state.Streaming = false
		r.append(TimelineEntry{Kind: EntryError, Text: env.Error})
		return nil
	}

	switch env.Type {
	case wire.EventStreaming:
		var ev wire.Streaming
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		r.state.ConversationID = ev.ConversationID
		r.state.Streaming = true
		r.state.Partial = ""
		r.state.LastError = ""

	case wire.EventChunk:
		var ev wire.Chunk
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		r.state.Streaming = true
		r.state.Partial += ev.Text

	case wire.EventToolCall:
		var ev wire.ToolCallEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		r.append(TimelineEntry{Kind: EntryToolCall, Tool: ev.Name, Text: string(ev.Input)})

	case wire.EventToolResult:
		var ev wire.ToolResultEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		text := string(ev.Output)
		if ev.Error != "" {
			text = ev.Error
		}
		r.append(TimelineEntry{Kind: EntryToolResult, Tool: ev.Name, Text: text})

	case wire.EventApprovalRequired:
		var ev wire.ApprovalRequired
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		r.state.Streaming = false
		r.state.PendingApprovals = ev.Pending
		r.append(TimelineEntry{Kind: EntryNotice, Text: pendingSummary(ev.Pending)})

	case wire.EventDesignUpdate:
		var ev wire.DesignUpdate
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		r.setDesign(ev.Design)

	case wire.EventPlanProposal:
		var ev wire.PlanProposal
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		r.state.Plan = ev.Plan

	case wire.EventPlanApproved:
		if r.state.Plan != nil {
			r.state.Plan.Status = plan.StatusApproved
		}
		r.append(TimelineEntry{Kind: EntryNotice, Text: "plan approved"})

	case wire.EventPlanRejected:
		if r.state.Plan != nil {
			r.state.Plan.Status = plan.StatusRejected
		}
		r.append(TimelineEntry{Kind: EntryNotice, Text: "plan rejected"})

	case wire.EventDesignSaved:
		var ev wire.DesignSaved
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		r.state.Versions = ev.Versions
		r.setDesign(ev.Design)
		r.append(TimelineEntry{Kind: EntryNotice, Text: fmt.Sprintf("saved version %d", ev.Version)})

	case wire.EventComplete:
		var ev wire.Complete
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		r.state.ConversationID = ev.ConversationID
		r.state.Streaming = false
		r.state.Partial = ""
		r.state.Response = ev.Response
		r.state.PendingApprovals = nil
		if ev.Response != "" {
			r.append(TimelineEntry{Kind: EntryAssistant, Text: ev.Response})
		}
		r.setDesign(ev.Design)

	default:
		// Unknown event kinds are skipped so older clients keep working
		// against newer servers.
	}
	return nil
}

// RecordUserMessage adds the outbound message to the local transcript.
func (r *Reconciler) RecordUserMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(TimelineEntry{Kind: EntryUser, Text: text})
}

// ClearPending drops the pending approvals after decisions were sent.
func (r *Reconciler) ClearPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.PendingApprovals = nil
}

func (r *Reconciler) append(e TimelineEntry) {
	r.state.Timeline = append(r.state.Timeline, e)
}

func (r *Reconciler) setDesign(d *design.Design) {
	if d == nil {
		return
	}
	r.state.Design = d
	if r.Rebuild != nil {
		r.Rebuild(d)
	}
}

func pendingSummary(pending []wire.PendingCall) string {
	if len(pending) == 1 {
		return fmt.Sprintf("approval required for %s (call %s)", pending[0].Name, pending[0].CallID)
	}
	return fmt.Sprintf("approval required for %d tool calls", len(pending))
}
