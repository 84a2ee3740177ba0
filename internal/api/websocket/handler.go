package websocket

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/maumercado/taskboard-go/internal/logger"
)

// Handler upgrades sprint requests to relay connections.
type Handler struct {
	hub          *Hub
	debug        bool
	allowedHosts []string
	upgrader     websocket.Upgrader
}

// NewHandler creates a handler. Cross-origin handshakes are accepted in
// debug mode or when the origin host is one of allowedHosts.
func NewHandler(hub *Hub, debug bool, allowedHosts []string) *Handler {
	h := &Handler{
		hub:          hub,
		debug:        debug,
		allowedHosts: allowedHosts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin allows requests without an Origin header, same-host origins
// and the configured hosts.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.debug {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, host := range h.allowedHosts {
		if strings.EqualFold(u.Host, host) || strings.EqualFold(u.Hostname(), host) {
			return true
		}
	}
	logger.Warn().Str("origin", origin).Str("host", r.Host).Msg("websocket origin rejected")
	return false
}

// ServeWS handles WebSocket upgrade requests
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sprint := chi.URLParam(r, "sprint")
	if sprint == "" {
		http.Error(w, "sprint required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	client := NewClient(h.hub, conn, sprint)
	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		_ = conn.Close()
		return
	}

	// Start pumps in goroutines
	go client.WritePump()
	go client.ReadPump()

	log := logger.WithSprint(sprint)
	log.Info().
		Str("client_id", client.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("websocket client connected")
}
