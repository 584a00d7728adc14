package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsDialTimeout  = 10 * time.Second
	wsReadWait     = 60 * time.Second
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 54 * time.Second
)

// subscriptionRequest is the subscribe message the platform's push gateway
// expects right after the connection is established.
type subscriptionRequest struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

// WebSocketTransport dials the platform's push gateway over a persistent
// websocket and subscribes to the configured event topics.
type WebSocketTransport struct {
	url    string
	token  string
	topics []string
}

// NewWebSocketTransport creates a websocket transport for the given gateway
// URL. The bearer token is attached during the handshake; topics are the
// event names to subscribe to.
func NewWebSocketTransport(url, token string, topics []string) *WebSocketTransport {
	return &WebSocketTransport{url: url, token: token, topics: topics}
}

// Dial establishes the websocket session and sends the topic subscription.
func (t *WebSocketTransport) Dial(ctx context.Context) (Session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	defer cancel()

	header := http.Header{}
	if t.token != "" {
		header.Set("Authorization", "Bearer "+t.token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, t.url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial push gateway: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(wsReadWait))
	// Control frames go through WriteControl: the pong reply runs on the
	// receive goroutine while the keepalive pinger writes concurrently, and
	// WriteControl is the only write path safe for that.
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(wsWriteWait))
	})
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadWait))
		return nil
	})

	session := &wsSession{conn: conn, done: make(chan struct{})}

	sub := subscriptionRequest{Type: "subscribe", Topics: t.topics}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	go session.keepalive()
	return session, nil
}

// wsSession wraps an established websocket connection
type wsSession struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

// Receive blocks for the next event envelope. Control frames and subscription
// confirmations without an event name are skipped.
func (s *wsSession) Receive() (Envelope, error) {
	for {
		s.conn.SetReadDeadline(time.Now().Add(wsReadWait))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return Envelope{}, fmt.Errorf("websocket read failed: %w", err)
		}

		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Event == "" {
			continue
		}
		return envelope, nil
	}
}

// Close tears down the underlying connection.
func (s *wsSession) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.conn.Close()
}

// keepalive pings the gateway so intermediaries keep the connection open.
func (s *wsSession) keepalive() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
