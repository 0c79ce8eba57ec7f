package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/metrics"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Publisher is the push transport used by the notification service.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Subscription is one connected client. Events arrive on a buffered channel;
// when the client falls behind, new events are dropped rather than queued.
type Subscription struct {
	ID        uuid.UUID
	selectors []Target

	mu     sync.Mutex
	events chan Event
	seen   *lru.Cache[string, struct{}]
	closed bool
	hub    *Hub
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Selectors() []Target {
	out := make([]Target, len(s.selectors))
	copy(out, s.selectors)
	return out
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

type outcome string

const (
	outcomeDelivered outcome = "delivered"
	outcomeDuplicate outcome = "duplicate"
	outcomeDropped   outcome = "dropped"
	outcomeClosed    outcome = "closed"
)

func (s *Subscription) offer(ev Event) outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return outcomeClosed
	}
	if s.seen.Contains(ev.Key) {
		return outcomeDuplicate
	}
	select {
	case s.events <- ev:
		s.seen.Add(ev.Key, struct{}{})
		return outcomeDelivered
	default:
		return outcomeDropped
	}
}

// Hub delivers events to local subscriptions by target.
type Hub struct {
	mu         sync.RWMutex
	subs       map[uuid.UUID]*Subscription
	byTarget   map[Target]map[uuid.UUID]*Subscription
	bufferSize int
	dedupeSize int
}

func NewHub(bufferSize, dedupeSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if dedupeSize <= 0 {
		dedupeSize = 100
	}
	return &Hub{
		subs:       make(map[uuid.UUID]*Subscription),
		byTarget:   make(map[Target]map[uuid.UUID]*Subscription),
		bufferSize: bufferSize,
		dedupeSize: dedupeSize,
	}
}

func (h *Hub) Subscribe(selectors ...Target) *Subscription {
	seen, _ := lru.New[string, struct{}](h.dedupeSize)
	sub := &Subscription{
		ID:        uuid.New(),
		selectors: dedupeTargets(selectors),
		events:    make(chan Event, h.bufferSize),
		seen:      seen,
		hub:       h,
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	for _, t := range sub.selectors {
		set, ok := h.byTarget[t]
		if !ok {
			set = make(map[uuid.UUID]*Subscription)
			h.byTarget[t] = set
		}
		set[sub.ID] = sub
	}
	count := len(h.subs)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(count))
	slog.Debug("subscriber connected", "component", "realtime", "subscription_id", sub.ID, "selectors", len(sub.selectors), "total", count)
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	if _, ok := h.subs[sub.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, sub.ID)
	for _, t := range sub.selectors {
		if set, ok := h.byTarget[t]; ok {
			delete(set, sub.ID)
			if len(set) == 0 {
				delete(h.byTarget, t)
			}
		}
	}
	count := len(h.subs)
	h.mu.Unlock()

	sub.mu.Lock()
	sub.closed = true
	close(sub.events)
	sub.mu.Unlock()

	metrics.Subscribers.Set(float64(count))
	slog.Debug("subscriber disconnected", "component", "realtime", "subscription_id", sub.ID, "total", count)
}

// Deliver hands ev to every local subscription of its target and returns how
// many accepted it. Delivery never blocks on a slow subscriber.
func (h *Hub) Deliver(ev Event) int {
	h.mu.RLock()
	set := h.byTarget[ev.Target]
	targets := make([]*Subscription, 0, len(set))
	for _, sub := range set {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range targets {
		switch sub.offer(ev) {
		case outcomeDelivered:
			delivered++
			metrics.NotificationsTotal.WithLabelValues(string(outcomeDelivered)).Inc()
		case outcomeDuplicate:
			metrics.NotificationsTotal.WithLabelValues(string(outcomeDuplicate)).Inc()
		case outcomeDropped:
			metrics.NotificationsTotal.WithLabelValues(string(outcomeDropped)).Inc()
			slog.Warn("subscriber buffer full, event dropped", "component", "realtime", "subscription_id", sub.ID, "key", ev.Key)
		}
	}
	return delivered
}

// Publish implements Publisher for a single instance.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.Deliver(ev)
	return nil
}

// Count returns the number of connected subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Shutdown closes every subscription.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		h.remove(sub)
	}
}

func dedupeTargets(in []Target) []Target {
	seen := make(map[Target]struct{}, len(in))
	out := make([]Target, 0, len(in))
	for _, t := range in {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
