package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"canvasmith/internal/design"
	"canvasmith/internal/wire"
)

const clientWriteWait = 10 * time.Second

// Config holds the settings needed to construct a Client.
type Config struct {
	// URL is the websocket endpoint, e.g. "ws://localhost:8081/ws".
	URL string

	// Rebuild, when set, fires after every design change.
	Rebuild func(*design.Design)

	Log zerolog.Logger
}

// Client is a websocket client for the canvas gateway. Writes are serialized
// internally; the read loop runs in Listen.
type Client struct {
	conn *websocket.Conn
	rec  *Reconciler
	log  zerolog.Logger

	writeMu sync.Mutex
}

// Connect dials the gateway and returns a connected client.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("client: URL is required")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", url, err)
	}

	rec := NewReconciler()
	rec.Rebuild = cfg.Rebuild
	rec.SetConnected(true)

	return &Client{
		conn: conn,
		rec:  rec,
		log:  cfg.Log,
	}, nil
}

// Reconciler exposes the state mirror for snapshots.
func (c *Client) Reconciler() *Reconciler { return c.rec }

// Listen reads frames until the connection drops or ctx is cancelled.
// onEvent, when set, fires after each frame has been folded into the state.
func (c *Client) Listen(ctx context.Context, onEvent func(State)) error {
	defer c.rec.SetConnected(false)

	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("client: read: %w", err)
		}
		if err := c.rec.Apply(raw); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		if onEvent != nil {
			onEvent(c.rec.Snapshot())
		}
	}
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SendMessage submits a user message. conversationID may be empty on the
// first message; the server assigns one and announces it via "streaming".
func (c *Client) SendMessage(message, conversationID string, maxTurns int) error {
	c.rec.RecordUserMessage(message)
	return c.send(wire.Request{
		Kind:           wire.KindMessage,
		Message:        message,
		ConversationID: conversationID,
		MaxTurns:       maxTurns,
	})
}

// SendApprovals resolves pending tool calls with the given verdicts.
func (c *Client) SendApprovals(conversationID string, decisions []wire.Decision) error {
	if err := c.send(wire.Request{
		Kind:           wire.KindApprovals,
		ConversationID: conversationID,
		Decisions:      decisions,
	}); err != nil {
		return err
	}
	c.rec.ClearPending()
	return nil
}

// ApprovePlan approves the proposed plan and kicks off execution.
func (c *Client) ApprovePlan(conversationID, planID string) error {
	return c.send(wire.Request{
		Kind:           wire.KindApprovePlan,
		ConversationID: conversationID,
		PlanID:         planID,
	})
}

// RejectPlan rejects the proposed plan with feedback for the revision run.
func (c *Client) RejectPlan(conversationID, planID, feedback string) error {
	return c.send(wire.Request{
		Kind:           wire.KindRejectPlan,
		ConversationID: conversationID,
		PlanID:         planID,
		Feedback:       feedback,
	})
}

// SaveDesign snapshots the server's live document and promotes d to live.
func (c *Client) SaveDesign(conversationID string, d *design.Design) error {
	return c.send(wire.Request{
		Kind:           wire.KindSaveDesign,
		ConversationID: conversationID,
		Design:         d,
	})
}

// LoadVersion restores a saved version as the live document.
func (c *Client) LoadVersion(conversationID string, version int) error {
	return c.send(wire.Request{
		Kind:           wire.KindLoadVersion,
		ConversationID: conversationID,
		Version:        version,
	})
}

func (c *Client) send(req wire.Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("client: write %s: %w", req.Kind, err)
	}
	return nil
}
