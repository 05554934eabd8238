package api

import (
	"sync"
	"time"

	"github.com/bryanchriswhite/nativeshot/internal/logger"
)

// Event is pushed to /api/events subscribers
type Event struct {
	Type       string    `json:"type"`
	Target     uint64    `json:"target"`
	Request    uint64    `json:"request"`
	Width      uint32    `json:"width"`
	Height     uint32    `json:"height"`
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"captured_at"`
}

// hub fans events out to websocket subscribers. A subscriber that falls
// behind loses events rather than stalling the tick loop.
type hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan Event]struct{})}
}

func (h *hub) subscribe() chan Event {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *hub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			logger.WithComponent("api").Debug().Msg("Event subscriber is slow, dropping event")
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
