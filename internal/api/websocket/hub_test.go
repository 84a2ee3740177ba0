package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/taskboard-go/internal/events"
)

type relayServer struct {
	hub    *Hub
	server *httptest.Server
}

func newRelayServer(t *testing.T, relay *events.RedisPubSub) *relayServer {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(relay)
	hub.Run(ctx)

	r := chi.NewRouter()
	r.Get("/{sprint:[0-9]+}", NewHandler(hub, false, nil).ServeWS)
	server := httptest.NewServer(r)

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
		cancel()
	})
	return &relayServer{hub: hub, server: server}
}

func (rs *relayServer) dial(t *testing.T, sprint string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(rs.server.URL, "http") + "/" + sprint
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected frame %q", data)
}

func TestHub_BroadcastsWithinSprint(t *testing.T) {
	rs := newRelayServer(t, nil)

	alice := rs.dial(t, "3")
	bob := rs.dial(t, "3")
	carol := rs.dial(t, "4")

	require.Eventually(t, func() bool { return rs.hub.ClientCount() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, rs.hub.SprintCount("3"))

	frame := `{"model":"task","action":"update","id":7}`
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(frame)))

	assert.Equal(t, frame, read(t, bob))
	assertSilent(t, alice)
	assertSilent(t, carol)
}

func TestHub_RelaysNonJSONFramesAsIs(t *testing.T) {
	rs := newRelayServer(t, nil)

	alice := rs.dial(t, "3")
	bob := rs.dial(t, "3")
	require.Eventually(t, func() bool { return rs.hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("pong")))

	// One websocket message per frame, in order
	assert.Equal(t, "ping", read(t, bob))
	assert.Equal(t, "pong", read(t, bob))
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	rs := newRelayServer(t, nil)

	alice := rs.dial(t, "3")
	rs.dial(t, "3")
	require.Eventually(t, func() bool { return rs.hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	alice.Close()
	assert.Eventually(t, func() bool { return rs.hub.SprintCount("3") == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	rs := newRelayServer(t, nil)

	conn := rs.dial(t, "3")
	require.Eventually(t, func() bool { return rs.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	rs.hub.Stop()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, rs.hub.ClientCount())
}

func TestHub_FansOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newRelay := func() *events.RedisPubSub {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		relay := events.NewRedisPubSub(client, "")
		t.Cleanup(func() { relay.Close() })
		return relay
	}

	one := newRelayServer(t, newRelay())
	two := newRelayServer(t, newRelay())
	require.NotEqual(t, one.hub.InstanceID(), two.hub.InstanceID())

	alice := one.dial(t, "3")
	bob := one.dial(t, "3")
	dave := two.dial(t, "3")
	erin := two.dial(t, "4")
	require.Eventually(t, func() bool {
		return one.hub.ClientCount() == 2 && two.hub.ClientCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("hello")))

	assert.Equal(t, "hello", read(t, bob))
	assert.Equal(t, "hello", read(t, dave))

	// Neither the sender nor its local peers see the frame twice
	assertSilent(t, alice)
	assertSilent(t, bob)
	assertSilent(t, erin)
}

func TestHandler_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		debug   bool
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{"no origin", false, nil, "", "relay.test", true},
		{"same host", false, nil, "https://relay.test", "relay.test", true},
		{"same host different case", false, nil, "https://Relay.Test", "relay.test", true},
		{"allowed host with port", false, []string{"board.test:8000"}, "http://board.test:8000", "relay.test", true},
		{"allowed hostname", false, []string{"board.test"}, "https://board.test", "relay.test", true},
		{"foreign origin", false, []string{"board.test"}, "https://evil.test", "relay.test", false},
		{"foreign origin in debug", true, nil, "https://evil.test", "relay.test", true},
		{"garbage origin", false, nil, "::", "relay.test", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(NewHub(nil), tt.debug, tt.allowed)
			req := httptest.NewRequest(http.MethodGet, "/3", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.checkOrigin(req))
		})
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	rs := newRelayServer(t, nil)

	url := "ws" + strings.TrimPrefix(rs.server.URL, "http") + "/3"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, rs.hub.ClientCount())
}
