package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"canvasmith/internal/wire"
)

// scriptedGateway upgrades the connection, reads one request, and answers
// with the canned streaming/complete sequence.
func scriptedGateway(t *testing.T, got chan<- wire.Request) http.HandlerFunc {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req wire.Request
		require.NoError(t, json.Unmarshal(raw, &req))
		got <- req

		write := func(typ string, data any) {
			require.NoError(t, conn.WriteJSON(wire.Event{Type: typ, Data: data}))
		}
		write(wire.EventStreaming, wire.Streaming{ConversationID: "conv-1"})
		write(wire.EventChunk, wire.Chunk{ConversationID: "conv-1", Text: "hello"})
		write(wire.EventComplete, wire.Complete{ConversationID: "conv-1", Response: "hello there"})
	}
}

func TestConnectSendAndReconcile(t *testing.T) {
	got := make(chan wire.Request, 1)
	srv := httptest.NewServer(scriptedGateway(t, got))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, Config{URL: url})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SendMessage("draw me a poster", "", 0))

	done := make(chan struct{})
	go func() {
		_ = c.Listen(ctx, func(st State) {
			if st.Response != "" {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case req := <-got:
		require.Equal(t, wire.KindMessage, req.Kind)
		require.Equal(t, "draw me a poster", req.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the message")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listen loop never finished")
	}

	st := c.Reconciler().Snapshot()
	require.Equal(t, "conv-1", st.ConversationID)
	require.Equal(t, "hello there", st.Response)
	require.Equal(t, EntryUser, st.Timeline[0].Kind)
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	require.Error(t, err)
}
