package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func TestWebSocketTransport(t *testing.T) {
	type received struct {
		auth string
		sub  subscriptionRequest
	}
	recv := make(chan received, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub subscriptionRequest
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		recv <- received{auth: auth, sub: sub}

		payload, _ := json.Marshal(map[string]any{
			"event": "staff-alert:new",
			"payload": map[string]any{
				"alert": map[string]any{"id": "alert-1"},
			},
		})
		conn.WriteMessage(websocket.TextMessage, payload)

		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	transport := NewWebSocketTransport(url, "tok-123", []string{"staff-alert:new", "staff-alert:updated"})

	session, err := transport.Dial(context.Background())
	require.NoError(t, err)
	defer session.Close()

	select {
	case got := <-recv:
		assert.Equal(t, "Bearer tok-123", got.auth)
		assert.Equal(t, "subscribe", got.sub.Type)
		assert.Equal(t, []string{"staff-alert:new", "staff-alert:updated"}, got.sub.Topics)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the subscription request")
	}

	envelope, err := session.Receive()
	require.NoError(t, err)
	assert.Equal(t, "staff-alert:new", envelope.Event)
	assert.Contains(t, string(envelope.Payload), "alert-1")
}

func TestWebSocketTransport_RepliesToPing(t *testing.T) {
	pongs := make(chan string, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.SetPongHandler(func(appData string) error {
			select {
			case pongs <- appData:
			default:
			}
			return nil
		})

		var sub subscriptionRequest
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		if err := conn.WriteControl(websocket.PingMessage, []byte("gateway-keepalive"), time.Now().Add(time.Second)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	transport := NewWebSocketTransport(url, "", []string{"staff-alert:new"})

	session, err := transport.Dial(context.Background())
	require.NoError(t, err)
	defer session.Close()

	// Control frames are processed inside the read loop.
	go session.Receive()

	select {
	case data := <-pongs:
		assert.Equal(t, "gateway-keepalive", data)
	case <-time.After(2 * time.Second):
		t.Fatal("server ping was never answered with a pong")
	}
}

func TestWebSocketTransport_DialFailure(t *testing.T) {
	transport := NewWebSocketTransport("ws://127.0.0.1:1/ws", "", nil)
	_, err := transport.Dial(context.Background())
	assert.Error(t, err)
}
