package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/sjawhar/dictaite/internal/config"
	"github.com/sjawhar/dictaite/internal/dictation"
)

// DefaultTickInterval is how often Run polls the controller.
const DefaultTickInterval = 50 * time.Millisecond

// Poller is the part of the controller the tick loop needs.
type Poller interface {
	Poll()
	Snapshot() dictation.Snapshot
}

type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}

	stateMu   sync.Mutex
	lastState []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Run polls c every interval and broadcasts its state whenever it changes.
// It returns when ctx is done.
func (h *Hub) Run(ctx context.Context, c Poller, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Poll()
			h.BroadcastState(c.Snapshot())
		}
	}
}

// BroadcastState sends s unless it is identical to the last state sent.
func (h *Hub) BroadcastState(s dictation.Snapshot) bool {
	state, err := json.Marshal(s)
	if err != nil {
		log.Printf("state marshal error: %v", err)
		return false
	}

	h.stateMu.Lock()
	if bytes.Equal(state, h.lastState) {
		h.stateMu.Unlock()
		return false
	}
	h.lastState = state
	h.stateMu.Unlock()

	h.broadcastEvent(StateEvent{
		Event: newEvent("state", time.Now().UTC()),
		State: s,
	})
	return true
}

func (h *Hub) BroadcastPreferencesChanged(p config.Preferences) {
	h.broadcastEvent(PreferencesChangedEvent{
		Event:       newEvent("preferences_changed", time.Now().UTC()),
		Preferences: p,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
