package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maumercado/taskboard-go/internal/events"
	"github.com/maumercado/taskboard-go/internal/logger"
	"github.com/maumercado/taskboard-go/internal/metrics"
)

const (
	publishTimeout  = 5 * time.Second
	broadcastBuffer = 256
	sourceLocal     = "local"
	sourceRemote    = "redis"
)

type delivery struct {
	frame  *events.Frame
	source string
}

// Hub groups websocket clients by sprint and relays each frame a client
// sends to the other clients watching the same sprint. With a Redis relay
// frames are also published so that every instance delivers them.
type Hub struct {
	instanceID string
	rooms      map[string]map[*Client]struct{}
	count      int
	broadcast  chan delivery
	register   chan *Client
	unregister chan *Client
	relay      *events.RedisPubSub
	mu         sync.RWMutex
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewHub creates a hub. relay may be nil for a single instance.
func NewHub(relay *events.RedisPubSub) *Hub {
	return &Hub{
		instanceID: uuid.New().String(),
		rooms:      make(map[string]map[*Client]struct{}),
		broadcast:  make(chan delivery, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		relay:      relay,
		stopCh:     make(chan struct{}),
	}
}

// InstanceID identifies this hub on the Redis relay.
func (h *Hub) InstanceID() string {
	return h.instanceID
}

// Run starts the hub's main loop. The Redis subscription, if any, is
// confirmed before Run returns.
func (h *Hub) Run(ctx context.Context) {
	if h.relay != nil {
		frames, err := h.relay.SubscribeAll(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("failed to subscribe to relay, serving local clients only")
		} else {
			h.wg.Add(1)
			go h.forward(ctx, frames)
		}
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				// Release pumps blocked in Register or Unregister
				h.stopOnce.Do(func() { close(h.stopCh) })
				h.closeAllClients()
				return
			case <-h.stopCh:
				h.closeAllClients()
				return
			case client := <-h.register:
				h.add(client)
				logger.Debug().Str("client_id", client.ID).Str("sprint", client.Sprint).Msg("client registered")

			case client := <-h.unregister:
				h.remove(client)
				logger.Debug().Str("client_id", client.ID).Str("sprint", client.Sprint).Msg("client unregistered")

			case d := <-h.broadcast:
				h.deliver(d)
			}
		}
	}()

	logger.Info().Str("instance", h.instanceID).Msg("websocket hub started")
}

// forward hands frames published by other instances to the main loop.
func (h *Hub) forward(ctx context.Context, frames <-chan *events.Frame) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if f.Origin == h.instanceID {
				continue
			}
			h.enqueue(delivery{frame: f, source: sourceRemote})
		}
	}
}

// Stop stops the hub and disconnects every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.wg.Wait()
	logger.Info().Msg("websocket hub stopped")
}

// Register registers a client with the hub
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopCh:
		return false
	}
}

// Unregister unregisters a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopCh:
	}
}

// Relay delivers data from sender to the rest of its sprint, here and on
// every other instance.
func (h *Hub) Relay(sender *Client, data []byte) {
	f := &events.Frame{
		Sprint: sender.Sprint,
		Origin: h.instanceID,
		Sender: sender.ID,
		Data:   data,
	}
	h.enqueue(delivery{frame: f, source: sourceLocal})

	if h.relay == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.relay.Publish(ctx, f); err != nil {
		logger.Warn().Err(err).Str("sprint", f.Sprint).Msg("failed to publish frame to relay")
	}
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.broadcast <- d:
	default:
		metrics.RecordRelayDrop()
		logger.Warn().Str("sprint", d.frame.Sprint).Msg("broadcast channel full, dropping frame")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// SprintCount returns the number of clients watching sprint.
func (h *Hub) SprintCount(sprint string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sprint])
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.Sprint]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[client.Sprint] = room
	}
	if _, dup := room[client]; !dup {
		room[client] = struct{}{}
		h.count++
	}
	count := h.count
	h.mu.Unlock()
	metrics.SetRelayConnections(float64(count))
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	room := h.rooms[client.Sprint]
	if _, ok := room[client]; ok {
		delete(room, client)
		close(client.send)
		h.count--
		if len(room) == 0 {
			delete(h.rooms, client.Sprint)
		}
	}
	count := h.count
	h.mu.Unlock()
	metrics.SetRelayConnections(float64(count))
}

func (h *Hub) deliver(d delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[d.frame.Sprint] {
		if client.ID == d.frame.Sender {
			continue
		}

		select {
		case client.send <- d.frame.Data:
			metrics.RecordRelayFrame(d.source)
		default:
			// Client buffer full, mark for removal
			metrics.RecordRelayDrop()
			go h.Unregister(client)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sprint, room := range h.rooms {
		for client := range room {
			close(client.send)
		}
		delete(h.rooms, sprint)
	}
	h.count = 0
	metrics.SetRelayConnections(0)
}
