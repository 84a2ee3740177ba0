package events

import (
	"sync"
)

// Handler receives an emitted event.
type Handler func(Event)

type subscription struct {
	handler Handler
	once    bool
}

// Emitter routes events to handlers by name. Handlers run synchronously on
// the emitting goroutine in registration order, so a single emitting
// goroutine preserves event ordering.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[string][]*subscription
}

// NewEmitter creates an empty emitter
func NewEmitter() *Emitter {
	return &Emitter{
		handlers: make(map[string][]*subscription),
	}
}

// On registers h for name and returns a func that removes it.
func (e *Emitter) On(name string, h Handler) (off func()) {
	return e.add(name, &subscription{handler: h})
}

// Once registers h to run for the next event named name only.
func (e *Emitter) Once(name string, h Handler) (off func()) {
	return e.add(name, &subscription{handler: h, once: true})
}

func (e *Emitter) add(name string, sub *subscription) func() {
	e.mu.Lock()
	e.handlers[name] = append(e.handlers[name], sub)
	e.mu.Unlock()

	return func() { e.remove(name, sub) }
}

func (e *Emitter) remove(name string, sub *subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.handlers[name]
	for i, s := range subs {
		if s == sub {
			e.handlers[name] = append(subs[:i:i], subs[i+1:]...)
			if len(e.handlers[name]) == 0 {
				delete(e.handlers, name)
			}
			return true
		}
	}
	return false
}

// Emit delivers ev to the handlers of ev.Name, then to AllEvents handlers.
func (e *Emitter) Emit(ev Event) {
	for _, name := range []string{ev.Name, AllEvents} {
		e.mu.RLock()
		subs := append([]*subscription(nil), e.handlers[name]...)
		e.mu.RUnlock()

		for _, s := range subs {
			if s.once && !e.remove(name, s) {
				// Already consumed by a concurrent Emit
				continue
			}
			s.handler(ev)
		}
	}
}

// Listeners returns how many handlers are registered for name.
func (e *Emitter) Listeners(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[name])
}
