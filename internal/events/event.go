package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Lifecycle and generic event names emitted by a socket.
const (
	EventOpen    = "open"
	EventClosed  = "closed"
	EventError   = "error"
	EventMessage = "message"

	// AllEvents subscribes a handler to every emitted name.
	AllEvents = "*"
)

// Mutation actions the board server announces.
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionRemove = "remove"
)

var ErrMalformedFrame = errors.New("malformed frame")

// Event is what an Emitter delivers to handlers. Name is the routing key;
// the remaining fields are filled depending on the kind of event.
type Event struct {
	Name    string
	Model   string
	Action  string
	ID      string
	Payload map[string]interface{} // set when the frame is a JSON object
	Data    interface{}            // the decoded frame, any JSON value
	Raw     []byte
	Err     error
}

// Topic is the routing name of a model mutation, e.g. "task:update".
func Topic(model, action string) string {
	return model + ":" + action
}

// ParseFrame decodes an inbound text frame holding exactly one JSON value.
// It always yields the generic message event and, when the value is an
// object naming both a model and an action, a second event routed on
// Topic(model, action).
func ParseFrame(raw []byte) ([]Event, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data interface{}
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrMalformedFrame)
	}

	msg := Event{
		Name: EventMessage,
		Data: data,
		Raw:  raw,
	}
	payload, ok := data.(map[string]interface{})
	if !ok {
		return []Event{msg}, nil
	}

	msg.Payload = payload
	msg.Model, _ = payload["model"].(string)
	msg.Action, _ = payload["action"].(string)
	msg.ID = idString(payload["id"])

	out := []Event{msg}
	if msg.Model != "" && msg.Action != "" {
		topic := msg
		topic.Name = Topic(msg.Model, msg.Action)
		out = append(out, topic)
	}
	return out, nil
}

// idString normalizes numeric and string ids to the collection key form.
func idString(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}
