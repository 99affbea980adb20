package stream

import (
	"sync"

	"github.com/segmentio/ksuid"

	"github.com/star/isstracker/internal/tracker"
)

// Hub fans tracker snapshots out to stream subscribers. It implements
// tracker.Renderer. Each subscriber holds at most one pending snapshot; a slow
// subscriber only ever sees the newest state.
type Hub struct {
	current func() tracker.Snapshot

	mu   sync.Mutex
	subs map[string]chan tracker.Snapshot
}

// NewHub creates a Hub. current supplies the snapshot sent to a subscriber
// when it first connects.
func NewHub(current func() tracker.Snapshot) *Hub {
	return &Hub{
		current: current,
		subs:    make(map[string]chan tracker.Snapshot),
	}
}

// Render delivers s to every subscriber, replacing any snapshot the
// subscriber has not consumed yet.
func (h *Hub) Render(s tracker.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		// Buffer full: drop the stale snapshot, then deliver.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribe registers a subscriber and returns its connection ID, its
// snapshot channel and a function that unregisters it.
func (h *Hub) Subscribe() (string, <-chan tracker.Snapshot, func()) {
	id := ksuid.New().String()
	ch := make(chan tracker.Snapshot, 1)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return id, ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Current returns the snapshot a new subscriber starts from.
func (h *Hub) Current() tracker.Snapshot {
	return h.current()
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
