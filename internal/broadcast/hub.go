// Package broadcast carries "data-update" notifications between map
// sessions. Hub is the in-process channel. Watcher notices writes made by
// other processes to the shared slot and republishes them on a Hub.
package broadcast

import (
	"log"
	"sync"
	"time"

	"hotelmap/internal/domain"
)

// TypeDataUpdate is the only message type sent today.
const TypeDataUpdate = "data-update"

// Message announces that the document was saved.
type Message struct {
	Type      string           `json:"type"`
	Data      *domain.HotelMap `json:"data"`
	Version   int64            `json:"version"`
	Timestamp int64            `json:"timestamp"` // unix milliseconds
	Origin    string           `json:"origin"`
}

// NewDataUpdate builds a data-update message stamped with the current time.
func NewDataUpdate(doc *domain.HotelMap, version int64, origin string) Message {
	return Message{
		Type:      TypeDataUpdate,
		Data:      doc,
		Version:   version,
		Timestamp: time.Now().UnixMilli(),
		Origin:    origin,
	}
}

// Handler receives messages on the subscriber's own goroutine.
type Handler func(Message)

const subscriberBuffer = 16

type subscriber struct {
	origin string
	ch     chan Message
}

// Hub fans messages out to subscribers. A subscriber never receives
// messages published under its own origin.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers fn for messages not published by origin. The
// returned func unsubscribes and stops the delivery goroutine.
func (h *Hub) Subscribe(origin string, fn Handler) (unsubscribe func()) {
	sub := &subscriber{origin: origin, ch: make(chan Message, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		for msg := range sub.ch {
			fn(msg)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			close(sub.ch)
			h.mu.Unlock()
		})
	}
}

// Publish delivers msg without blocking. A subscriber whose buffer is full
// misses the message; the next one carries the full document anyway.
func (h *Hub) Publish(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.origin == msg.Origin {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			log.Printf("[WATCH] Dropped update v%d for slow subscriber %s", msg.Version, sub.origin)
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
