package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API client metrics
	ClientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskboard_client_request_duration_seconds",
			Help:    "Board API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	ClientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_client_requests_total",
			Help: "Total number of board API requests",
		},
		[]string{"method", "status"},
	)

	TaskMoves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_task_moves_total",
			Help: "Task moves by target column and outcome",
		},
		[]string{"status", "outcome"},
	)

	// Socket metrics
	SocketState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskboard_socket_state",
			Help: "Current socket state (0 disconnected, 1 connecting, 2 open, 3 closed)",
		},
	)

	SocketEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_socket_events_total",
			Help: "Total number of events emitted by the socket",
		},
		[]string{"event"},
	)

	SocketFramesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskboard_socket_frames_sent_total",
			Help: "Total number of frames written to the socket",
		},
	)

	// Relay metrics
	RelayConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskboard_relay_connections",
			Help: "Current number of relay websocket connections",
		},
	)

	RelayFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_relay_frames_total",
			Help: "Frames handled by the relay by source",
		},
		[]string{"source"},
	)

	RelayDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskboard_relay_dropped_total",
			Help: "Frames dropped because a client could not keep up",
		},
	)
)

// RecordClientRequest records a board API request
func RecordClientRequest(method, status string, duration float64) {
	ClientRequestDuration.WithLabelValues(method, status).Observe(duration)
	ClientRequestsTotal.WithLabelValues(method, status).Inc()
}

// RecordTaskMove records the outcome of a task move
func RecordTaskMove(status, outcome string) {
	TaskMoves.WithLabelValues(status, outcome).Inc()
}

// SetSocketState sets the socket state gauge
func SetSocketState(state float64) {
	SocketState.Set(state)
}

// RecordSocketEvent records an emitted socket event
func RecordSocketEvent(event string) {
	SocketEvents.WithLabelValues(event).Inc()
}

// RecordFrameSent records a frame written to the socket
func RecordFrameSent() {
	SocketFramesSent.Inc()
}

// SetRelayConnections sets the relay connections gauge
func SetRelayConnections(count float64) {
	RelayConnections.Set(count)
}

// RecordRelayFrame records a frame handled by the relay
func RecordRelayFrame(source string) {
	RelayFrames.WithLabelValues(source).Inc()
}

// RecordRelayDrop records a frame dropped for a slow client
func RecordRelayDrop() {
	RelayDropped.Inc()
}
