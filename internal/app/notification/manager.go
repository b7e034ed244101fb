// Package notification provides subscription hubs for hardware signals such as route changes and the ringer switch.
package notification

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is a handle on one registered callback.
// The owner must Cancel it on every exit path; Cancel is idempotent.
type Subscription struct {
	id     string
	cancel func()
	once   sync.Once
}

// ID returns the subscription ID.
func (s *Subscription) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Cancel removes the subscription. Safe on a nil subscription.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Hub fans values out to subscribers.
// Each subscriber sees values in publish order, with a replayed value always ahead of
// anything published after it. Delivery normally runs on the publisher's goroutine; a
// value published while a subscriber is still handling an earlier one is handed to the
// goroutine already delivering to it. Subscribers that own state must re-dispatch onto
// their own context.
type Hub[T any] struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscriber[T]

	// Replay hubs deliver the latest value immediately on subscribe.
	replay    bool
	latest    T
	hasLatest bool

	sequenceNo uint64
}

// subscriber serializes delivery to one callback.
type subscriber[T any] struct {
	fn func(T)

	mu       sync.Mutex
	pending  []T
	draining bool
}

func (s *subscriber[T]) enqueue(v T) {
	s.mu.Lock()
	s.pending = append(s.pending, v)
	s.mu.Unlock()
}

// drain delivers pending values unless another goroutine is already doing so.
func (s *subscriber[T]) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		v := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		s.fn(v)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

// NewHub creates a hub that only delivers values published after subscription.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		subscriptions: make(map[string]*subscriber[T]),
	}
}

// NewReplayHub creates a hub that delivers the current value immediately on subscribe,
// then every subsequent change.
func NewReplayHub[T any](initial T) *Hub[T] {
	return &Hub[T]{
		subscriptions: make(map[string]*subscriber[T]),
		replay:        true,
		latest:        initial,
		hasLatest:     true,
	}
}

// Subscribe registers fn and returns its subscription handle.
func (h *Hub[T]) Subscribe(fn func(T)) *Subscription {
	id := uuid.New().String()
	sub := &subscriber[T]{fn: fn}

	// Registration and the replay snapshot share the lock Publish takes,
	// so a concurrent publish queues behind the replayed value.
	h.mu.Lock()
	h.subscriptions[id] = sub
	if h.replay && h.hasLatest {
		sub.enqueue(h.latest)
	}
	h.mu.Unlock()

	sub.drain()

	return &Subscription{
		id:     id,
		cancel: func() { h.unsubscribe(id) },
	}
}

func (h *Hub[T]) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscriptions, id)
}

// Publish delivers v to every subscriber and returns the sequence number assigned to it.
func (h *Hub[T]) Publish(v T) uint64 {
	h.mu.Lock()
	h.sequenceNo++
	seq := h.sequenceNo
	h.latest = v
	h.hasLatest = true
	subs := make([]*subscriber[T], 0, len(h.subscriptions))
	for _, sub := range h.subscriptions {
		sub.enqueue(v)
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.drain()
	}
	return seq
}

// Latest returns the most recently published value.
func (h *Hub[T]) Latest() (T, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.hasLatest
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub[T]) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions)
}

// Close removes all subscriptions.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscriptions = make(map[string]*subscriber[T])
}
