package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/maumercado/taskboard-go/internal/events"
	"github.com/maumercado/taskboard-go/internal/logger"
	"github.com/maumercado/taskboard-go/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// SocketState is the connection state of a Socket.
type SocketState int32

const (
	StateDisconnected SocketState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s SocketState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SocketOption configures a Socket.
type SocketOption func(*Socket)

// WithSocketDialer overrides the websocket dialer.
func WithSocketDialer(d *websocket.Dialer) SocketOption {
	return func(s *Socket) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithSocketHeader sets a func producing the handshake headers. It is called
// on every dial so a token saved later is picked up.
func WithSocketHeader(h func() http.Header) SocketOption {
	return func(s *Socket) {
		s.header = h
	}
}

// WithKeepalive sets the ping period and the time allowed for a pong.
func WithKeepalive(ping, pong time.Duration) SocketOption {
	return func(s *Socket) {
		if ping > 0 && pong > ping {
			s.pingPeriod = ping
			s.pongWait = pong
		}
	}
}

// Socket is a websocket connection that re-emits inbound JSON frames as
// events. Each connection attempt is one generation; Close or an error ends
// the generation and everything queued for it.
//
// Events emitted: open, closed, error (Event.Err set), message, and
// "<model>:<action>" for frames naming both.
type Socket struct {
	url        string
	dialer     *websocket.Dialer
	header     func() http.Header
	pingPeriod time.Duration
	pongWait   time.Duration

	emitter *events.Emitter
	log     zerolog.Logger

	mu     sync.Mutex
	state  SocketState
	gen    uint64
	conn   *websocket.Conn
	ready  *Future[struct{}]
	outbox [][]byte
	wake   chan struct{}
	stop   chan struct{}
	ended  chan struct{}
	manual bool
}

// NewSocket creates a socket for server. Nothing is dialed until Open.
func NewSocket(server string, opts ...SocketOption) *Socket {
	s := &Socket{
		url: server,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		header:     func() http.Header { return nil },
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
		emitter:    events.NewEmitter(),
		log:        logger.WithComponent("socket"),
		state:      StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked()
	return s
}

// resetLocked starts a fresh generation.
func (s *Socket) resetLocked() {
	s.gen++
	s.conn = nil
	s.outbox = nil
	s.ready = newFuture[struct{}]()
	s.wake = make(chan struct{}, 1)
	s.stop = make(chan struct{})
	s.ended = make(chan struct{})
}

// URL returns the server address.
func (s *Socket) URL() string {
	return s.url
}

// Events returns the emitter delivering this socket's events. Handlers run
// on the socket's reader goroutine; a slow handler delays later frames.
func (s *Socket) Events() *events.Emitter {
	return s.emitter
}

// State returns the current connection state.
func (s *Socket) State() SocketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open connects unless a connection is already open or being opened, in
// which case the existing future is returned. The future rejects with the
// dial error, or with ErrSocketClosed if Close runs first. By the time it
// rejects the socket is already closed and may be opened again. The open
// event is emitted before the future resolves, so open handlers must not
// wait on it. ctx bounds the handshake only.
func (s *Socket) Open(ctx context.Context) *Future[struct{}] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateConnecting || s.state == StateOpen {
		return s.ready
	}

	s.state = StateConnecting
	s.manual = false
	metrics.SetSocketState(float64(StateConnecting))

	go s.dial(ctx, s.gen, s.ready, s.header())
	return s.ready
}

func (s *Socket) dial(ctx context.Context, gen uint64, ready *Future[struct{}], header http.Header) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, header)

	s.mu.Lock()
	if s.gen != gen {
		// Closed while dialing
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.mu.Unlock()
		s.fail(gen, fmt.Errorf("websocket dial failed: %w", err))
		return
	}

	s.conn = conn
	s.state = StateOpen
	wake, stop := s.wake, s.stop
	s.mu.Unlock()

	metrics.SetSocketState(float64(StateOpen))
	s.log.Debug().Str("url", s.url).Msg("socket open")

	s.emit(events.Event{Name: events.EventOpen})
	ready.resolve(struct{}{}, nil)

	go s.writePump(gen, conn, wake, stop)
	go s.readPump(gen, conn)
}

// Send encodes v as JSON and queues it. Queued frames are written in call
// order once the socket is open, each exactly once. Frames queued when the
// socket closes are dropped. Only encoding errors are returned.
func (s *Socket) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	s.mu.Lock()
	s.outbox = append(s.outbox, data)
	wake := s.wake
	s.mu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued frames not yet written.
func (s *Socket) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outbox)
}

// dequeue pops the next frame of generation gen.
func (s *Socket) dequeue(gen uint64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || len(s.outbox) == 0 {
		return nil, false
	}
	frame := s.outbox[0]
	s.outbox[0] = nil
	s.outbox = s.outbox[1:]
	return frame, true
}

// writePump is the only writer of data frames for a connection.
func (s *Socket) writePump(gen uint64, conn *websocket.Conn, wake, stop <-chan struct{}) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	for {
		for {
			frame, ok := s.dequeue(gen)
			if !ok {
				break
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.fail(gen, err)
				return
			}
			metrics.RecordFrameSent()
		}

		select {
		case <-stop:
			return
		case <-wake:
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.fail(gen, err)
				return
			}
		}
	}
}

// readPump decodes inbound frames and emits them until the connection ends.
func (s *Socket) readPump(gen uint64, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongWait))
		return nil
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.teardown(gen, false, nil)
			} else {
				s.fail(gen, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		evs, err := events.ParseFrame(data)
		if err != nil {
			// Skip malformed messages
			s.log.Warn().Err(err).Int("size", len(data)).Msg("skipping malformed frame")
			continue
		}
		for _, ev := range evs {
			s.emit(ev)
		}
	}
}

// fail reports err for generation gen and tears it down. A pending open
// future is rejected with err.
func (s *Socket) fail(gen uint64, err error) {
	s.mu.Lock()
	current := s.gen == gen
	s.mu.Unlock()
	if !current {
		return
	}

	s.log.Warn().Err(err).Str("url", s.url).Msg("socket error")
	s.emit(events.Event{Name: events.EventError, Err: err})
	s.teardown(gen, false, err)
}

// teardown ends generation gen, if still current, and emits closed. A
// pending open future is rejected with cause, or ErrSocketClosed. A
// generation ended by an error goes back to Disconnected; a close by
// either side leaves the socket Closed.
func (s *Socket) teardown(gen uint64, manual bool, cause error) bool {
	state := StateClosed
	if cause != nil {
		state = StateDisconnected
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	conn, ready, stop, ended := s.conn, s.ready, s.stop, s.ended
	dropped := len(s.outbox)
	s.resetLocked()
	s.state = state
	s.manual = manual
	s.mu.Unlock()

	close(stop)
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}
	if cause == nil {
		cause = ErrSocketClosed
	}
	ready.resolve(struct{}{}, cause)
	close(ended)

	metrics.SetSocketState(float64(state))
	if dropped > 0 {
		s.log.Debug().Int("dropped", dropped).Msg("discarded queued frames")
	}
	s.emit(events.Event{Name: events.EventClosed})
	return true
}

// Close closes the connection, drops queued frames and emits closed. The
// socket can be opened again afterwards. Closing a closed socket only
// re-emits closed.
func (s *Socket) Close() error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	s.teardown(gen, true, nil)
	return nil
}

// endedSignal returns a channel closed when the current generation ends.
func (s *Socket) endedSignal() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Socket) closedByCaller() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manual
}

func (s *Socket) emit(ev events.Event) {
	metrics.RecordSocketEvent(ev.Name)
	s.emitter.Emit(ev)
}
