package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiMiddleware "github.com/maumercado/taskboard-go/internal/api/middleware"
	"github.com/maumercado/taskboard-go/internal/config"
	"github.com/maumercado/taskboard-go/internal/logger"
)

func init() {
	logger.Init("error", false)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			AllowedHosts: []string{"localhost:8080"},
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func startServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	s := NewServer(cfg, nil)
	s.Start(t.Context())
	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return s, ts
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func TestServer_Health(t *testing.T) {
	_, ts := startServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	_, ts := startServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestServer_SprintRouteOnlyMatchesNumbers(t *testing.T) {
	_, ts := startServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/backlog")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RelaysBetweenSprintClients(t *testing.T) {
	s, ts := startServer(t, testConfig())

	a, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/12"), nil)
	require.NoError(t, err)
	defer a.Close()
	b, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/12"), nil)
	require.NoError(t, err)
	defer b.Close()

	require.Eventually(t, func() bool { return s.Hub().SprintCount("12") == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"model":"sprint","action":"update","id":12}`)))

	_ = b.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := b.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"sprint","action":"update","id":12}`, string(data))
}

func TestServer_AuthRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, JWTSecret: "relay-secret"}
	_, ts := startServer(t, cfg)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "/12"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := apiMiddleware.IssueToken("relay-secret", "ana", time.Minute)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/12?token="+token), nil)
	require.NoError(t, err)
	conn.Close()

	conn, _, err = websocket.DefaultDialer.Dial(wsURL(ts, "/12"), http.Header{"Authorization": {"Token " + token}})
	require.NoError(t, err)
	conn.Close()
}

func TestServer_ConnectRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ConnectRPS = 1
	_, ts := startServer(t, cfg)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/12"), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "/12"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
