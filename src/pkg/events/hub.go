package events

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/q-controller/guessit/src/pkg/items"
)

const (
	queueSize      = 100
	subscriberSize = 16
	writeTimeout   = 5 * time.Second
)

const TypeItemAdded = "item_added"

// Event is what subscribers receive, one JSON object per websocket message.
type Event struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	SecretCount int    `json:"secret_count"`
	Timestamp   int64  `json:"timestamp"`
}

type subscriber struct {
	send chan Event
}

// Hub fans events out to websocket subscribers. Publishing never blocks:
// events are dropped when the queue is full, and slow subscribers miss
// events rather than stall the others.
type Hub struct {
	ch       chan Event
	done     atomic.Bool
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

// NewHub starts dispatching until ctx is cancelled. Subscribers are
// disconnected once it is.
func NewHub(ctx context.Context) *Hub {
	h := &Hub{
		ch:          make(chan Event, queueSize),
		subscribers: make(map[*subscriber]struct{}),
	}

	go func() {
		defer h.shutdown()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-h.ch:
				h.broadcast(event)
			}
		}
	}()

	return h
}

func (h *Hub) ItemAdded(id items.Identifier, secretCount int) error {
	return h.publish(Event{
		Type:        TypeItemAdded,
		ID:          id.String(),
		SecretCount: secretCount,
		Timestamp:   time.Now().Unix(),
	})
}

func (h *Hub) publish(event Event) error {
	if h.done.Load() {
		return fmt.Errorf("publisher is closed")
	}

	select {
	case h.ch <- event:
		return nil
	default:
		return fmt.Errorf("event queue is full, dropping event")
	}
}

// Subscribers reports the number of connected websocket clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- event:
		default:
			slog.Warn("Subscriber is too slow, dropping event", "type", event.Type, "id", event.ID)
		}
	}
}

func (h *Hub) shutdown() {
	h.done.Store(true)

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		close(sub.send)
	}
	h.subscribers = nil
}

func (h *Hub) subscribe() *subscriber {
	sub := &subscriber{send: make(chan Event, subscriberSize)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers == nil {
		close(sub.send)
		return sub
	}
	h.subscribers[sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, sub)
}

// ServeHTTP upgrades the request to a websocket and streams events until
// either side goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Failed to upgrade connection", "error", err)
		return
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	sub := h.subscribe()
	defer h.unsubscribe(sub)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case event, ok := <-sub.send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeTimeout))
				return
			}
			if deadlineErr := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); deadlineErr != nil {
				return
			}
			if writeErr := conn.WriteJSON(event); writeErr != nil {
				slog.Debug("Failed to write event", "error", writeErr)
				return
			}
		}
	}
}
