package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// DEX program IDs whose log activity signals new pool and token events.
const (
	RaydiumAMMV4Program = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	PumpFunProgram      = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
)

// Watcher maintains logsSubscribe subscriptions on DEX programs and invokes
// a trigger when activity is seen, so the scan loop can react to new pools
// ahead of its regular tick. Trigger invocations are coalesced by the
// MinTriggerGap; a burst of pool events yields one extra scan, not dozens.
type Watcher struct {
	endpoint string
	programs []string
	trigger  func()

	dialer            websocket.Dialer
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
	minTriggerGap     time.Duration
	writeTimeout      time.Duration
	pingInterval      time.Duration

	mu          sync.Mutex
	lastTrigger time.Time
}

// WatcherOption configures Watcher.
type WatcherOption func(*Watcher)

// WithPrograms overrides the watched program IDs.
func WithPrograms(ids ...string) WatcherOption {
	return func(w *Watcher) { w.programs = ids }
}

// WithMinTriggerGap sets the minimum spacing between trigger invocations.
func WithMinTriggerGap(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.minTriggerGap = d }
}

// NewWatcher creates a watcher for the given WebSocket endpoint. trigger is
// called (never concurrently with itself) when watched programs show
// activity.
func NewWatcher(endpoint string, trigger func(), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		endpoint:          endpoint,
		programs:          []string{RaydiumAMMV4Program, PumpFunProgram},
		trigger:           trigger,
		dialer:            websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		reconnectDelay:    time.Second,
		maxReconnectDelay: 30 * time.Second,
		minTriggerGap:     30 * time.Second,
		writeTimeout:      10 * time.Second,
		pingInterval:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run connects, subscribes and pumps notifications until ctx is cancelled,
// reconnecting with capped exponential backoff on any connection failure.
func (w *Watcher) Run(ctx context.Context) {
	delay := w.reconnectDelay
	for {
		err := w.session(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Dur("retry_in", delay).Msg("pool watcher disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > w.maxReconnectDelay {
			delay = w.maxReconnectDelay
		}
	}
}

// session runs one connection lifetime: dial, subscribe to every program,
// then read until the connection drops or ctx ends.
func (w *Watcher) session(ctx context.Context) error {
	conn, _, err := w.dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("watcher dial: %w", err)
	}
	defer conn.Close()

	for i, program := range w.programs {
		req := watcherRequest{
			JSONRPC: "2.0",
			ID:      uint64(i + 1),
			Method:  "logsSubscribe",
			Params: []interface{}{
				map[string]interface{}{"mentions": []string{program}},
				map[string]string{"commitment": "confirmed"},
			},
		}
		conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
		if err := conn.WriteJSON(req); err != nil {
			return fmt.Errorf("watcher subscribe %s: %w", program, err)
		}
	}
	log.Info().Strs("programs", w.programs).Msg("pool watcher subscribed")

	// Close the connection when ctx ends so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
		}
	}()

	pinger := time.NewTicker(w.pingInterval)
	defer pinger.Stop()
	go func() {
		for {
			select {
			case <-done:
				return
			case <-pinger.C:
				conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
				conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("watcher read: %w", err)
		}
		w.handleMessage(message)
	}
}

func (w *Watcher) handleMessage(message []byte) {
	var notif watcherNotification
	if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "logsNotification" {
		return
	}
	if notif.Params == nil {
		return
	}
	// Failed transactions carry an err object; ignore them.
	if notif.Params.Result.Value.Err != nil {
		return
	}

	w.mu.Lock()
	fire := time.Since(w.lastTrigger) >= w.minTriggerGap
	if fire {
		w.lastTrigger = time.Now()
	}
	w.mu.Unlock()

	if fire && w.trigger != nil {
		log.Debug().Str("signature", notif.Params.Result.Value.Signature).Msg("pool activity, triggering scan")
		w.trigger()
	}
}

type watcherRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type watcherNotification struct {
	JSONRPC string               `json:"jsonrpc"`
	Method  string               `json:"method"`
	Params  *watcherNotifyParams `json:"params"`
}

type watcherNotifyParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Value struct {
			Signature string      `json:"signature"`
			Logs      []string    `json:"logs"`
			Err       interface{} `json:"err"`
		} `json:"value"`
	} `json:"result"`
}
