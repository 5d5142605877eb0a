// Package session owns per-conversation agent state: message history, the
// pending-approval snapshot, and the run sequence counter that implements
// stale-run suppression.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"canvasmith/internal/agent"
	"canvasmith/internal/design"
	"canvasmith/internal/wire"
)

var (
	ErrSessionNotFound    = errors.New("session: not found")
	ErrPendingApprovals   = errors.New("session: run suspended on pending approvals")
	ErrNoPendingApprovals = errors.New("session: no pending approvals")
)

// Session is one conversation's agent state. All fields are guarded by the
// Coordinator's mutex; callers only ever see copies.
type Session struct {
	ConversationID string
	MaxTurns       int
	History        []agent.Message
	// PendingState is the serialized agent.RunState of a run suspended on
	// tool approvals. Non-nil means AWAITING_APPROVAL.
	PendingState []byte
	runSeq       uint64
	closed       bool
}

// Coordinator creates sessions and drives runs against them. Every run start
// bumps the session's sequence counter; the per-event guard drops events
// from any run whose sequence no longer matches, which is the system's sole
// cancellation mechanism.
type Coordinator struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	runner  *agent.Runner
	designs *design.Store
	log     zerolog.Logger
}

func NewCoordinator(runner *agent.Runner, designs *design.Store, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		sessions: make(map[string]*Session),
		runner:   runner,
		designs:  designs,
		log:      log,
	}
}

// NewConversation allocates a conversation id and its session.
func (c *Coordinator) NewConversation(maxTurns int) string {
	if maxTurns <= 0 {
		maxTurns = agent.DefaultMaxTurns
	}
	id := uuid.NewString()
	c.mu.Lock()
	c.sessions[id] = &Session{ConversationID: id, MaxTurns: maxTurns}
	c.mu.Unlock()
	return id
}

// Exists reports whether the conversation has a session.
func (c *Coordinator) Exists(conversationID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sessions[strings.TrimSpace(conversationID)]
	return ok
}

// Close marks the session closed; in-flight runs stop forwarding events.
func (c *Coordinator) Close(conversationID string) {
	c.update(conversationID, func(s *Session) { s.closed = true })
}

// AwaitingApproval reports whether the session holds a suspended run.
func (c *Coordinator) AwaitingApproval(conversationID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[strings.TrimSpace(conversationID)]
	return ok && len(s.PendingState) > 0
}

// History returns a copy of the session's message history.
func (c *Coordinator) History(conversationID string) []agent.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[strings.TrimSpace(conversationID)]
	if !ok {
		return nil
	}
	return append([]agent.Message(nil), s.History...)
}

// StartRun appends message as a user turn and launches a run over the full
// history. It returns once the run is started; events and errors flow
// through the sink. open reports whether the transport is still connected.
func (c *Coordinator) StartRun(ctx context.Context, conversationID, message string, target wire.Sink, open func() bool) error {
	conversationID = strings.TrimSpace(conversationID)
	var (
		input agent.RunInput
		seq   uint64
	)
	err := c.withSession(conversationID, func(s *Session) error {
		if len(s.PendingState) > 0 {
			return ErrPendingApprovals
		}
		s.runSeq++
		seq = s.runSeq
		history := append(append([]agent.Message(nil), s.History...), agent.Message{Role: "user", Content: message})
		input = agent.RunInput{
			ConversationID: conversationID,
			History:        history,
			MaxTurns:       s.MaxTurns,
		}
		return nil
	})
	if err != nil {
		return err
	}
	input.Sink = &runSink{c: c, conversationID: conversationID, seq: seq, target: target, open: open}
	go c.execute(ctx, conversationID, seq, input, nil, nil)
	return nil
}

// ResumeRun applies the user's verdicts to the pending tool calls and
// resumes the suspended run.
func (c *Coordinator) ResumeRun(ctx context.Context, conversationID string, decisions []wire.Decision, target wire.Sink, open func() bool) error {
	conversationID = strings.TrimSpace(conversationID)
	var (
		state agent.RunState
		input agent.RunInput
		seq   uint64
	)
	err := c.withSession(conversationID, func(s *Session) error {
		if len(s.PendingState) == 0 {
			return ErrNoPendingApprovals
		}
		if err := json.Unmarshal(s.PendingState, &state); err != nil {
			return err
		}
		s.PendingState = nil
		s.runSeq++
		seq = s.runSeq
		input = agent.RunInput{
			ConversationID: conversationID,
			MaxTurns:       s.MaxTurns,
		}
		return nil
	})
	if err != nil {
		return err
	}
	input.Sink = &runSink{c: c, conversationID: conversationID, seq: seq, target: target, open: open}
	go c.execute(ctx, conversationID, seq, input, &state, decisions)
	return nil
}

func (c *Coordinator) execute(ctx context.Context, conversationID string, seq uint64, in agent.RunInput, resume *agent.RunState, decisions []wire.Decision) {
	var (
		out *agent.RunOutput
		err error
	)
	if resume != nil {
		out, err = c.runner.Resume(ctx, in, resume, decisions)
	} else {
		out, err = c.runner.Run(ctx, in)
	}
	if err != nil {
		c.log.Error().Err(err).Str("conversation", conversationID).Msg("run failed")
		in.Sink.Send(wire.EventError, err.Error())
		return
	}
	// Stale or closed runs finalize nothing.
	if !c.allow(conversationID, seq) {
		return
	}
	if out.Interrupted() {
		blob, err := json.Marshal(out.State)
		if err != nil {
			c.log.Error().Err(err).Str("conversation", conversationID).Msg("snapshot pending run state")
			in.Sink.Send(wire.EventError, err.Error())
			return
		}
		c.update(conversationID, func(s *Session) {
			s.History = out.History
			s.PendingState = blob
		})
		return
	}
	c.update(conversationID, func(s *Session) {
		s.History = out.History
		s.PendingState = nil
	})
	in.Sink.Send(wire.EventComplete, wire.Complete{
		ConversationID: conversationID,
		History:        out.History,
		Response:       out.Response,
		Design:         c.designs.Get(conversationID),
	})
}

func (c *Coordinator) allow(conversationID string, seq uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[conversationID]
	return ok && !s.closed && s.runSeq == seq
}

func (c *Coordinator) update(conversationID string, fn func(*Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[strings.TrimSpace(conversationID)]; ok {
		fn(s)
	}
}

func (c *Coordinator) withSession(conversationID string, fn func(*Session) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[conversationID]
	if !ok {
		return ErrSessionNotFound
	}
	return fn(s)
}

// runSink forwards run events only while the originating run is still the
// session's current one, the session is open, and the transport is
// connected. Anything else is dropped silently.
type runSink struct {
	c              *Coordinator
	conversationID string
	seq            uint64
	target         wire.Sink
	open           func() bool
}

func (s *runSink) Send(event string, data any) {
	if !s.c.allow(s.conversationID, s.seq) {
		return
	}
	if s.open != nil && !s.open() {
		return
	}
	if s.target != nil {
		s.target.Send(event, data)
	}
}
