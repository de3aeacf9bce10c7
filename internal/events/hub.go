// Package events fans booking change events out to live subscribers such as
// the admin dashboard and calendar streams.
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Domenick1991/studiobooking/internal/domain"
)

// Filter selects events. Empty fields match everything.
type Filter struct {
	BookingID string
	UserID    string
	Statuses  []domain.BookingStatus
}

func (f Filter) Match(e domain.BookingEvent) bool {
	if f.BookingID != "" && f.BookingID != e.BookingID {
		return false
	}
	if f.UserID != "" && f.UserID != e.UserID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == e.Status {
			return true
		}
	}
	return false
}

type Subscription struct {
	id     uint64
	hub    *Hub
	filter Filter
	ch     chan domain.BookingEvent
	once   sync.Once
}

// Events is closed when the subscription or the hub is closed.
func (s *Subscription) Events() <-chan domain.BookingEvent {
	return s.ch
}

func (s *Subscription) Close() {
	s.hub.remove(s.id)
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	topic  string
	closed bool
	log    *zap.Logger
}

type Option func(*Hub)

// WithTopic makes Publish ignore every topic but this one.
func WithTopic(topic string) Option {
	return func(h *Hub) {
		h.topic = topic
	}
}

func WithBuffer(n int) Option {
	return func(h *Hub) {
		h.buffer = n
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(h *Hub) {
		h.log = log
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: 16,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Subscribe(filter Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		hub:    h,
		filter: filter,
		ch:     make(chan domain.BookingEvent, h.buffer),
	}
	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

// Broadcast delivers event to every matching subscriber without blocking.
// A subscriber whose buffer is full misses the event.
func (h *Hub) Broadcast(event domain.BookingEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sub.filter.Match(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.log.Warn("dropping event for slow subscriber",
				zap.Uint64("subscription", sub.id), zap.String("booking_id", event.BookingID))
		}
	}
}

// Publish lets the hub stand in for the kafka producer when no broker is configured.
func (h *Hub) Publish(_ context.Context, topic, _ string, payload interface{}) error {
	if h.topic != "" && topic != h.topic {
		return nil
	}
	switch e := payload.(type) {
	case domain.BookingEvent:
		h.Broadcast(e)
	case *domain.BookingEvent:
		h.Broadcast(*e)
	}
	return nil
}

// Handle adapts the hub to the kafka consumer handler signature.
func (h *Hub) Handle(_ context.Context, event domain.BookingEvent) error {
	h.Broadcast(event)
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
}
