package socket

import (
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

func newTestServer(t *testing.T, hub *Hub, userID string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(userID, conn)
		defer func() {
			hub.Unregister(userID, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestHub_NotifyDeliversEnvelope(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub, "hospital-1")
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connected("hospital-1") }, time.Second, 10*time.Millisecond)

	hub.Notify("hospital-1", "sos.created", map[string]string{"bloodType": "O+"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "sos.created", got.Event)
	assert.Equal(t, "O+", got.Data["bloodType"])
}

func TestHub_NotifyOfflineIsNoop(t *testing.T) {
	hub := NewHub()
	assert.False(t, hub.Connected("nobody"))
	assert.NotPanics(t, func() { hub.Notify("nobody", "sos.created", nil) })
}
