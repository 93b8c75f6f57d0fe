// Package notify implements the per-analysis progress broadcast: any number
// of subscribers may attach to an analysis id and every event published to
// that id is delivered to all currently attached subscribers. There is no
// replay buffer; delivery is fire-and-forget and a slow subscriber's events
// are dropped rather than blocking the publisher.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/threatmesh/threatmesh/core"
	"github.com/threatmesh/threatmesh/logging"
)

type subscriber struct {
	mu     sync.Mutex
	ch     chan core.NotificationEvent
	closed bool
}

// deliver attempts a non-blocking send. Delivery and close are serialized on
// the subscriber mutex so a publish can never race the channel close. A
// subscriber that already cancelled is neither delivered to nor counted as a
// drop.
func (s *subscriber) deliver(event core.NotificationEvent) (delivered, dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, false
	}
	select {
	case s.ch <- event:
		return true, false
	default:
		return false, true
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	close(s.ch)
}

// Options configures a Hub.
type Options struct {
	// BufferSize sets the per-subscriber channel buffer. When a buffer is
	// full further events for that subscriber are dropped and counted.
	BufferSize int
	// Logger records dropped-event diagnostics.
	Logger logging.Logger
}

// Hub is a per-analysis-identifier broadcast. Safe for concurrent use.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string][]*subscriber
	bufferSize int
	dropped    atomic.Int64
	logger     logging.Logger
}

// NewHub constructs a Hub with optional overrides.
func NewHub(optFns ...func(o *Options)) *Hub {
	opts := Options{
		BufferSize: 64,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	return &Hub{
		subs:       make(map[string][]*subscriber),
		bufferSize: opts.BufferSize,
		logger:     opts.Logger,
	}
}

// Subscribe attaches a subscriber to an analysis id. Only events published
// after the subscription are delivered. The returned cancel function detaches
// the subscriber and closes its channel; it is safe to call more than once.
func (h *Hub) Subscribe(analysisID string) (<-chan core.NotificationEvent, func()) {
	sub := &subscriber{ch: make(chan core.NotificationEvent, h.bufferSize)}

	h.mu.Lock()
	h.subs[analysisID] = append(h.subs[analysisID], sub)
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			subs := h.subs[analysisID]
			for i, s := range subs {
				if s == sub {
					h.subs[analysisID] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			if len(h.subs[analysisID]) == 0 {
				delete(h.subs, analysisID)
			}
			h.mu.Unlock()
			sub.close()
		})
	}
	return sub.ch, cancel
}

// Publish delivers an event to every subscriber currently attached to the
// analysis id. Publish never blocks and never fails: events for a subscriber
// whose buffer is full are dropped and counted.
func (h *Hub) Publish(analysisID string, event core.NotificationEvent) {
	h.mu.RLock()
	subs := make([]*subscriber, len(h.subs[analysisID]))
	copy(subs, h.subs[analysisID])
	h.mu.RUnlock()

	for _, sub := range subs {
		if _, dropped := sub.deliver(event); dropped {
			count := h.dropped.Add(1)
			if count%10 == 1 { // log every 10th drop to avoid spam
				h.logger.Warn("notification buffer full, dropped event analysis_id=%s type=%s total_dropped=%d",
					analysisID, event.Type, count)
			}
		}
	}
}

// SubscriberCount returns the number of subscribers attached to an analysis.
func (h *Hub) SubscriberCount(analysisID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[analysisID])
}

// Dropped returns the total number of events dropped across all subscribers.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }
