package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logsNotification(signature string, txErr interface{}) []byte {
	notif := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "logsNotification",
		"params": map[string]interface{}{
			"subscription": int64(1),
			"result": map[string]interface{}{
				"value": map[string]interface{}{
					"signature": signature,
					"logs":      []string{"Program log: initialize2"},
					"err":       txErr,
				},
			},
		},
	}
	data, _ := json.Marshal(notif)
	return data
}

func TestWatcherTriggerCoalescing(t *testing.T) {
	var fired atomic.Int32
	w := NewWatcher("ws://unused", func() { fired.Add(1) }, WithMinTriggerGap(time.Hour))

	for i := 0; i < 5; i++ {
		w.handleMessage(logsNotification("sig", nil))
	}

	assert.Equal(t, int32(1), fired.Load())
}

func TestWatcherIgnoresFailedTransactions(t *testing.T) {
	var fired atomic.Int32
	w := NewWatcher("ws://unused", func() { fired.Add(1) }, WithMinTriggerGap(0))

	w.handleMessage(logsNotification("sig", map[string]interface{}{"InstructionError": []interface{}{}}))
	w.handleMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":42}`)) // subscribe ack
	w.handleMessage([]byte(`not json`))

	assert.Equal(t, int32(0), fired.Load())
}

func TestWatcherSessionSubscribesAndTriggers(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan watcherRequest, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Expect one logsSubscribe per program, ack each.
		for i := 0; i < 2; i++ {
			var req watcherRequest
			require.NoError(t, conn.ReadJSON(&req))
			subscribed <- req
			ack := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": int64(i + 1)}
			require.NoError(t, conn.WriteJSON(ack))
		}

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, logsNotification("abc", nil)))

		// Hold the connection open until the client disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	fired := make(chan struct{}, 1)
	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	w := NewWatcher(endpoint, func() { fired <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case req := <-subscribed:
			assert.Equal(t, "logsSubscribe", req.Method)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for subscription")
		}
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for trigger")
	}
}
