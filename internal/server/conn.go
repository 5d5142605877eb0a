package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"canvasmith/internal/wire"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

// wsConn wraps a websocket connection with a single writer goroutine. Send
// implements wire.Sink so run events go straight to the client.
type wsConn struct {
	conn    *websocket.Conn
	writeCh chan any
	done    chan struct{}
	closed  atomic.Bool
	log     zerolog.Logger
}

func newWSConn(ctx context.Context, conn *websocket.Conn, log zerolog.Logger) *wsConn {
	c := &wsConn{
		conn:    conn,
		writeCh: make(chan any, 32),
		done:    make(chan struct{}),
		log:     log,
	}
	go c.writer(ctx)
	return c
}

func (c *wsConn) writer(ctx context.Context) {
	defer close(c.done)
	defer c.closed.Store(true)
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case out := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(out); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send queues an enveloped event. EventError is delivered as the flat
// {"error": ...} shape. A full queue drops the oldest message rather than
// blocking the run.
func (c *wsConn) Send(event string, data any) {
	if event == wire.EventError {
		code, _ := data.(string)
		c.SendError(code)
		return
	}
	c.push(wire.Event{Type: event, Data: data})
}

// SendError queues a flat {"error": code} reply.
func (c *wsConn) SendError(code string) {
	c.push(wire.ErrorMessage{Error: code})
}

// Open reports whether the writer is still alive.
func (c *wsConn) Open() bool { return !c.closed.Load() }

func (c *wsConn) push(out any) {
	if c.closed.Load() {
		return
	}
	select {
	case c.writeCh <- out:
		return
	default:
	}
	select {
	case <-c.writeCh:
		c.log.Warn().Msg("ws write queue full, dropping oldest message")
	default:
	}
	select {
	case c.writeCh <- out:
	default:
	}
}
