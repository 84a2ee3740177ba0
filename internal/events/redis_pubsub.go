package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/maumercado/taskboard-go/internal/logger"
)

const (
	defaultChannelPrefix = "watercooler:sprint:"
	frameBufferSize      = 256
)

// Frame is a websocket frame relayed between server instances.
type Frame struct {
	Sprint string `json:"sprint"`
	Origin string `json:"origin"` // instance that received the frame
	Sender string `json:"sender"` // client that sent it
	Data   []byte `json:"data"`
}

// ToJSON serializes the frame to JSON
func (f *Frame) ToJSON() ([]byte, error) {
	return json.Marshal(f)
}

// FrameFromJSON deserializes a frame from JSON
func FrameFromJSON(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// RedisPubSub relays frames over one Redis channel per sprint.
type RedisPubSub struct {
	client      *redis.Client
	prefix      string
	subscribers []*redis.PubSub
	mu          sync.Mutex
}

// NewRedisPubSub creates a relay on client. An empty prefix uses the default
// "watercooler:sprint:".
func NewRedisPubSub(client *redis.Client, prefix string) *RedisPubSub {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &RedisPubSub{
		client: client,
		prefix: prefix,
	}
}

// Publish sends a frame to every instance watching its sprint.
func (r *RedisPubSub) Publish(ctx context.Context, f *Frame) error {
	data, err := f.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize frame: %w", err)
	}

	channel := r.channelName(f.Sprint)
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish frame: %w", err)
	}

	logger.Debug().
		Str("channel", channel).
		Str("sender", f.Sender).
		Msg("frame published")

	return nil
}

// SubscribeAll streams frames for every sprint until ctx is done or Close
// is called.
func (r *RedisPubSub) SubscribeAll(ctx context.Context) (<-chan *Frame, error) {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	r.mu.Lock()
	r.subscribers = append(r.subscribers, pubsub)
	r.mu.Unlock()

	frames := make(chan *Frame, frameBufferSize)

	go func() {
		defer close(frames)
		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				f, err := FrameFromJSON([]byte(msg.Payload))
				if err != nil {
					logger.Error().Err(err).Str("channel", msg.Channel).Msg("failed to parse relayed frame")
					continue
				}
				if f.Sprint == "" {
					f.Sprint = strings.TrimPrefix(msg.Channel, r.prefix)
				}

				select {
				case frames <- f:
				default:
					logger.Warn().
						Str("sprint", f.Sprint).
						Msg("relay channel full, dropping frame")
				}
			}
		}
	}()

	return frames, nil
}

// Close closes all subscriptions
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pubsub := range r.subscribers {
		_ = pubsub.Close()
	}
	r.subscribers = nil

	return nil
}

func (r *RedisPubSub) channelName(sprint string) string {
	return r.prefix + sprint
}
