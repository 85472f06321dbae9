package channel

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"boardsync/internal/auth"
	"boardsync/internal/model"
	"boardsync/internal/util"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MaxReconnectAttempts is how many consecutive failed reconnections the
// websocket transport tolerates before giving up and reporting a terminal
// disconnect.
const MaxReconnectAttempts = 5

// reconnectSchedule is the delay before each reconnection attempt. Beyond
// the last entry the delay stays capped.
var reconnectSchedule = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

// WebSocket is the primary push transport: a client connection to the
// backend's restaurant-scoped event hub.
type WebSocket struct {
	url    string
	tokens auth.TokenProvider
	logger *zap.Logger

	events chan model.Event

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWebSocket creates a websocket channel for the given hub URL.
func NewWebSocket(url string, tokens auth.TokenProvider) *WebSocket {
	return &WebSocket{
		url:    url,
		tokens: tokens,
		logger: util.GetLogger(),
		events: make(chan model.Event, 64),
	}
}

// Events implements Channel.
func (w *WebSocket) Events() <-chan model.Event { return w.events }

// Start implements Channel. The connection loop runs until the context is
// cancelled, Close is called, or the reconnection budget is spent.
func (w *WebSocket) Start(ctx context.Context) error {
	go w.run(ctx)
	return nil
}

// Close implements Channel.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.conn != nil {
		_ = w.conn.Close()
	}
	return nil
}

func (w *WebSocket) run(ctx context.Context) {
	defer close(w.events)

	attempts := 0
	everConnected := false
	for {
		if w.isClosed() || ctx.Err() != nil {
			return
		}

		if attempts >= MaxReconnectAttempts {
			w.logger.Warn("Channel reconnection budget spent, giving up",
				zap.Int("attempts", attempts))
			w.emit(ctx, connectionEvent(false, attempts, true))
			return
		}

		if delay := backoffDelay(attempts); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}

		conn, err := w.dial(ctx)
		if err != nil {
			attempts++
			w.logger.Warn("Channel dial failed",
				zap.String("url", w.url),
				zap.Int("attempt", attempts),
				zap.Error(err))
			continue
		}

		w.setConn(conn)
		if everConnected {
			util.ReconnectsTotal.Inc()
		}
		everConnected = true
		attempts = 0
		w.logger.Info("Channel connected", zap.String("url", w.url))
		w.emit(ctx, connectionEvent(true, 0, false))

		err = w.readLoop(ctx, conn)
		w.setConn(nil)
		_ = conn.Close()

		if w.isClosed() || ctx.Err() != nil {
			return
		}

		w.logger.Warn("Channel connection lost", zap.Error(err))
		w.emit(ctx, connectionEvent(false, attempts, false))
		attempts++
	}
}

func (w *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	token, err := w.tokens.Token()
	if err != nil {
		return nil, err
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, w.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (w *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		event, err := DecodeFrame(raw)
		if err != nil {
			util.MalformedPayloadsTotal.WithLabelValues("websocket").Inc()
			w.logger.Warn("Dropping malformed channel frame", zap.Error(err))
			continue
		}
		w.emit(ctx, event)
	}
}

func (w *WebSocket) emit(ctx context.Context, e model.Event) {
	select {
	case w.events <- e:
	case <-ctx.Done():
	}
}

func (w *WebSocket) setConn(conn *websocket.Conn) {
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
}

func (w *WebSocket) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func backoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(reconnectSchedule) {
		return reconnectSchedule[len(reconnectSchedule)-1]
	}
	return reconnectSchedule[attempt]
}

func connectionEvent(connected bool, attempts int, final bool) model.ConnectionChangedEvent {
	return model.ConnectionChangedEvent{
		BaseEvent: model.BaseEvent{
			EventType: model.EventTypeConnectionChanged,
			Timestamp: time.Now(),
		},
		Connected: connected,
		Attempts:  attempts,
		Final:     final,
	}
}

var _ Channel = (*WebSocket)(nil)

// ErrChannelClosed is returned by transports asked to start after Close.
var ErrChannelClosed = errors.New("channel: closed")
