package live

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(msg, &out))
	return out
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Broadcast(t *testing.T) {
	hub, srv := newTestServer(t)

	a := dial(t, srv)
	b := dial(t, srv)
	waitForClients(t, hub, 2)

	require.NoError(t, hub.Broadcast(map[string]any{"remainingMeals": 3}))

	assert.Equal(t, float64(3), readJSON(t, a)["remainingMeals"])
	assert.Equal(t, float64(3), readJSON(t, b)["remainingMeals"])
}

func TestHub_LateClientGetsLastSnapshot(t *testing.T) {
	hub, srv := newTestServer(t)

	require.NoError(t, hub.Broadcast(map[string]any{"recentlyUpdated": true}))

	late := dial(t, srv)
	assert.Equal(t, true, readJSON(t, late)["recentlyUpdated"])
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, srv := newTestServer(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)

	assert.NoError(t, hub.Broadcast(map[string]any{"ok": true}))
}

func TestHub_BroadcastEncodingError(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	assert.Error(t, hub.Broadcast(make(chan int)))
}
