package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"canvasmith/internal/design"
	"canvasmith/internal/plan"
	"canvasmith/internal/session"
	"canvasmith/internal/wire"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// SnapshotArchiver receives a copy of every saved design version. Archiving
// is best-effort and runs off the request path.
type SnapshotArchiver interface {
	Archive(ctx context.Context, conversationID string, version int, d *design.Design) error
}

// Handler terminates the websocket and routes inbound control messages to
// the run coordinator and the stores.
type Handler struct {
	coord     *session.Coordinator
	designs   *design.Store
	versions  design.VersionStore
	plans     *plan.Registry
	snapshots SnapshotArchiver
	log       zerolog.Logger
}

func NewHandler(coord *session.Coordinator, designs *design.Store, versions design.VersionStore, plans *plan.Registry, snapshots SnapshotArchiver, log zerolog.Logger) *Handler {
	return &Handler{
		coord:     coord,
		designs:   designs,
		versions:  versions,
		plans:     plans,
		snapshots: snapshots,
		log:       log,
	}
}

// ServeWS upgrades the connection and runs the read loop until the client
// disconnects. Sessions started over this connection are closed with it.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		h.log.Warn().Err(err).Msg("ws set read deadline failed")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	wc := newWSConn(ctx, conn, h.log)
	owned := make(map[string]struct{})
	defer func() {
		cancel()
		<-wc.done
		for id := range owned {
			h.coord.Close(id)
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req wire.Request
		if err := json.Unmarshal(payload, &req); err != nil {
			wc.SendError(wire.ErrInvalidJSON)
			continue
		}
		req.Raw = payload
		if id := h.dispatch(ctx, req, wc); id != "" {
			owned[id] = struct{}{}
		}
	}
}

// clientConn is what dispatch needs from the transport; tests provide an
// in-memory implementation.
type clientConn interface {
	wire.Sink
	SendError(code string)
	Open() bool
}

// dispatch handles one inbound message and returns the conversation id of
// any session newly bound to this connection.
func (h *Handler) dispatch(ctx context.Context, req wire.Request, conn clientConn) string {
	switch strings.TrimSpace(req.Kind) {
	case wire.KindMessage:
		return h.handleMessage(ctx, req, conn)
	case wire.KindApprovals:
		h.handleApprovals(ctx, req, conn)
	case wire.KindApprovePlan:
		h.handlePlanDecision(ctx, req, conn, true)
	case wire.KindRejectPlan:
		h.handlePlanDecision(ctx, req, conn, false)
	case wire.KindSaveDesign:
		h.handleSaveDesign(ctx, req, conn)
	case wire.KindLoadVersion:
		h.handleLoadVersion(ctx, req, conn)
	default:
		h.log.Debug().Str("kind", req.Kind).Msg("ignoring unknown message kind")
	}
	return ""
}

func (h *Handler) handleMessage(ctx context.Context, req wire.Request, conn clientConn) string {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		conn.SendError(wire.ErrEmptyMessage)
		return ""
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	created := ""
	if conversationID == "" {
		conversationID = h.coord.NewConversation(req.MaxTurns)
		created = conversationID
		conn.Send(wire.EventStreaming, wire.Streaming{ConversationID: conversationID})
	} else if !h.coord.Exists(conversationID) {
		conn.SendError(wire.ErrSessionNotFound)
		return ""
	}

	if err := h.startRun(ctx, conversationID, message, conn); err != "" {
		conn.SendError(err)
		return created
	}
	return created
}

func (h *Handler) handleApprovals(ctx context.Context, req wire.Request, conn clientConn) {
	conversationID := strings.TrimSpace(req.ConversationID)
	err := h.coord.ResumeRun(ctx, conversationID, req.Decisions, conn, conn.Open)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrSessionNotFound):
		conn.SendError(wire.ErrSessionNotFound)
	case errors.Is(err, session.ErrNoPendingApprovals):
		conn.SendError(wire.ErrNoPendingApprovals)
	default:
		h.log.Error().Err(err).Msg("resume run failed")
		conn.SendError(wire.ErrNoPendingApprovals)
	}
}

func (h *Handler) handlePlanDecision(ctx context.Context, req wire.Request, conn clientConn, approve bool) {
	planID := strings.TrimSpace(req.PlanID)
	conversationID := strings.TrimSpace(req.ConversationID)
	if planID == "" || conversationID == "" {
		conn.SendError(wire.ErrMissingPlanIDOrConversationID)
		return
	}

	var (
		p   *plan.Plan
		err error
	)
	if approve {
		p, err = h.plans.Approve(conversationID, planID)
	} else {
		p, err = h.plans.Reject(conversationID, planID)
	}
	if err != nil {
		conn.SendError(wire.ErrPlanNotFound)
		return
	}

	event := wire.EventPlanApproved
	instruction := p.Instruction()
	if !approve {
		event = wire.EventPlanRejected
		instruction = plan.RejectionInstruction(req.Feedback)
	}
	conn.Send(event, wire.PlanDecision{ConversationID: conversationID, PlanID: planID})

	if !h.coord.Exists(conversationID) {
		conn.SendError(wire.ErrSessionNotFound)
		return
	}
	if code := h.startRun(ctx, conversationID, instruction, conn); code != "" {
		conn.SendError(code)
	}
}

func (h *Handler) handleSaveDesign(ctx context.Context, req wire.Request, conn clientConn) {
	conversationID := strings.TrimSpace(req.ConversationID)
	if req.Design == nil || conversationID == "" {
		conn.SendError(wire.ErrMissingDesignOrConversationID)
		return
	}
	live := h.designs.Get(conversationID)
	if live == nil {
		conn.SendError(wire.ErrDesignNotFound)
		return
	}

	// Snapshot what the server currently holds, then promote the client's
	// document to live.
	version, err := h.versions.Save(ctx, conversationID, live)
	if err != nil {
		h.log.Error().Err(err).Str("conversation", conversationID).Msg("save version failed")
		conn.SendError(wire.ErrSaveFailed)
		return
	}
	stored := h.designs.Replace(conversationID, req.Design)

	if h.snapshots != nil {
		snapshot := live
		go func() {
			if err := h.snapshots.Archive(context.WithoutCancel(ctx), conversationID, version, snapshot); err != nil {
				h.log.Warn().Err(err).Int("version", version).Msg("archive snapshot failed")
			}
		}()
	}

	infos, err := h.versions.List(ctx, conversationID)
	if err != nil {
		h.log.Error().Err(err).Msg("list versions failed")
	}
	conn.Send(wire.EventDesignSaved, wire.DesignSaved{
		Success:  true,
		Version:  version,
		Versions: infos,
		Design:   stored,
	})
}

func (h *Handler) handleLoadVersion(ctx context.Context, req wire.Request, conn clientConn) {
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" || req.Version <= 0 {
		conn.SendError(wire.ErrMissingConversationIDOrVer)
		return
	}
	d, err := h.versions.Load(ctx, conversationID, req.Version)
	if err != nil {
		conn.SendError(wire.ErrVersionNotFound)
		return
	}
	stored := h.designs.Replace(conversationID, d)
	conn.Send(wire.EventDesignUpdate, wire.DesignUpdate{ConversationID: conversationID, Design: stored})
}

// startRun maps coordinator errors to wire codes; empty means started.
func (h *Handler) startRun(ctx context.Context, conversationID, message string, conn clientConn) string {
	err := h.coord.StartRun(ctx, conversationID, message, conn, conn.Open)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrPendingApprovals):
		return wire.ErrPendingApprovals
	case errors.Is(err, session.ErrSessionNotFound):
		return wire.ErrSessionNotFound
	default:
		h.log.Error().Err(err).Msg("start run failed")
		return wire.ErrSessionNotFound
	}
}
