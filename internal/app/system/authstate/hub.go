// internal/app/system/authstate/hub.go
package authstate

import "sync"

// Kind names an authentication-state transition.
type Kind string

const (
	SignedIn       Kind = "signed_in"
	SignedOut      Kind = "signed_out"
	Deleted        Kind = "deleted"
	ProfileChanged Kind = "profile_changed"
)

// Event is one transition for one principal. Origin is set by the redis
// relay so an instance can skip its own echoes.
type Event struct {
	Kind   Kind   `json:"kind"`
	UID    string `json:"uid"`
	Origin string `json:"origin,omitempty"`
}

// Hub fans auth-state events out to in-process subscribers.
// Delivery is best effort: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	sinks  []func(Event)
	next   int
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Publish delivers e locally and hands it to every registered sink.
func (h *Hub) Publish(e Event) {
	h.Deliver(e)

	h.mu.RLock()
	sinks := append([]func(Event){}, h.sinks...)
	h.mu.RUnlock()
	for _, fn := range sinks {
		fn(e)
	}
}

// Deliver sends e to local subscribers only.
func (h *Hub) Deliver(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a buffered event channel and a func that releases it.
// The channel is closed on release or when the hub closes.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// OnPublish registers fn to receive every locally published event.
func (h *Hub) OnPublish(fn func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, fn)
}

// Close releases every subscriber. Later publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
