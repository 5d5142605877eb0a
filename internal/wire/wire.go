// Package wire defines the JSON messages exchanged over the websocket and
// the event sink the server-side components publish through.
package wire

import (
	"encoding/json"

	"canvasmith/internal/design"
	"canvasmith/internal/plan"
)

// Inbound message kinds.
const (
	KindMessage     = "message"
	KindApprovals   = "approvals"
	KindApprovePlan = "approve_plan"
	KindRejectPlan  = "reject_plan"
	KindSaveDesign  = "save_design"
	KindLoadVersion = "load_version"
)

// Outbound event types.
const (
	EventStreaming        = "streaming"
	EventChunk            = "chunk"
	EventToolCall         = "tool_call"
	EventToolResult       = "tool_result"
	EventApprovalRequired = "approval_required"
	EventDesignUpdate     = "design_update"
	EventPlanProposal     = "plan_proposal"
	EventPlanApproved     = "plan_approved"
	EventPlanRejected     = "plan_rejected"
	EventDesignSaved      = "design_saved"
	EventComplete         = "complete"
	// EventError is delivered as the flat {"error": ...} shape rather than
	// the {type, data} envelope.
	EventError = "error"
)

// Decision verdicts.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Error codes surfaced as {"error": code} replies.
const (
	ErrInvalidJSON                   = "invalid_json"
	ErrMissingPlanIDOrConversationID = "missing_plan_id_or_conversation_id"
	ErrPlanNotFound                  = "plan_not_found"
	ErrMissingDesignOrConversationID = "missing_design_or_conversation_id"
	ErrDesignNotFound                = "design_not_found"
	ErrMissingConversationIDOrVer    = "missing_conversation_id_or_version"
	ErrVersionNotFound               = "version_not_found"
	ErrEmptyMessage                  = "empty_message"
	ErrSaveFailed                    = "save_failed"
	ErrSessionNotFound               = "session_not_found"
	ErrPendingApprovals              = "pending_approvals"
	ErrNoPendingApprovals            = "no_pending_approvals"
)

// Sink receives outbound events. The websocket connection implements it for
// live clients; tests substitute an in-memory recorder.
type Sink interface {
	Send(event string, data any)
}

// Request is the single inbound message shape. Kind selects which optional
// fields matter.
type Request struct {
	Kind           string          `json:"kind"`
	Message        string          `json:"message,omitempty"`
	ConversationID string          `json:"conversationId,omitempty"`
	MaxTurns       int             `json:"maxTurns,omitempty"`
	PlanID         string          `json:"planId,omitempty"`
	Feedback       string          `json:"feedback,omitempty"`
	Design         *design.Design  `json:"design,omitempty"`
	Version        int             `json:"version,omitempty"`
	Decisions      []Decision      `json:"decisions,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

// Decision is one approve/reject verdict for a pending tool call.
type Decision struct {
	CallID   string `json:"callId"`
	Decision string `json:"decision"` // "approved" | "rejected"
}

// Event is the outbound envelope: {"type": ..., "data": ...}.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ErrorMessage is the flat {"error": code} reply for malformed or
// invalid-state requests.
type ErrorMessage struct {
	Error string `json:"error"`
}

// Streaming announces the conversation id assigned to a fresh message.
type Streaming struct {
	ConversationID string `json:"conversationId"`
}

// Chunk is a partial model-output fragment forwarded while a run streams.
type Chunk struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
}

// ToolCallEvent announces a tool invocation inside a run.
type ToolCallEvent struct {
	ConversationID string          `json:"conversationId"`
	CallID         string          `json:"callId"`
	Name           string          `json:"name"`
	Input          json.RawMessage `json:"input,omitempty"`
}

// ToolResultEvent reports the outcome of a tool invocation.
type ToolResultEvent struct {
	ConversationID string          `json:"conversationId"`
	CallID         string          `json:"callId"`
	Name           string          `json:"name"`
	Output         json.RawMessage `json:"output,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// PendingCall is a suspended tool invocation awaiting a user verdict.
type PendingCall struct {
	CallID string          `json:"callId"`
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input,omitempty"`
}

// ApprovalRequired tells the client a run is suspended on tool approvals.
type ApprovalRequired struct {
	ConversationID string        `json:"conversationId"`
	Pending        []PendingCall `json:"pending"`
}

// DesignUpdate carries the full document after any mutation, plus the single
// new or changed operation when one exists.
type DesignUpdate struct {
	ConversationID  string            `json:"conversationId"`
	Design          *design.Design    `json:"design"`
	LatestOperation *design.Operation `json:"latestOperation,omitempty"`
}

// PlanProposal carries a freshly proposed plan.
type PlanProposal struct {
	ConversationID string     `json:"conversationId"`
	Plan           *plan.Plan `json:"plan"`
}

// PlanDecision carries an approve/reject outcome for a plan.
type PlanDecision struct {
	ConversationID string `json:"conversationId"`
	PlanID         string `json:"planId"`
}

// DesignSaved acknowledges a save with the version listing.
type DesignSaved struct {
	Success  bool                 `json:"success"`
	Version  int                  `json:"version"`
	Versions []design.VersionInfo `json:"versions"`
	Design   *design.Design       `json:"design"`
}

// Complete signals normal run completion. History is the conversation
// message list; it is typed loosely here to keep this package at the bottom
// of the import graph.
type Complete struct {
	ConversationID string         `json:"conversationId"`
	History        any            `json:"history"`
	Response       string         `json:"response"`
	Design         *design.Design `json:"design"`
}
