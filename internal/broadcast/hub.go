// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Filter selects which deliveries a subscriber receives.
type Filter struct {
	// ConversationID limits delivery to one conversation; empty means all.
	ConversationID string
	// Channels limits delivery to the named channels; empty means all.
	Channels []string
}

func (f Filter) match(d Delivery) bool {
	if f.ConversationID != "" && d.Message.ConversationID != f.ConversationID {
		return false
	}
	if len(f.Channels) == 0 {
		return true
	}
	for _, c := range f.Channels {
		if c == d.Channel {
			return true
		}
	}
	return false
}

type subscriber struct {
	ch     chan Delivery
	filter Filter
}

// Hub fans messages out to in-process subscribers. Publish never blocks: a
// subscriber whose queue is full misses the message.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	nextID  uint64
	closed  bool
	dropped atomic.Uint64
	log     *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs: make(map[uint64]*subscriber),
		log:  logger.With("component", "broadcast.hub"),
	}
}

// Subscribe registers a subscriber. The returned cancel function removes it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(filter Filter, buffer int) (<-chan Delivery, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &subscriber{ch: make(chan Delivery, buffer), filter: filter}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = s
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(s.ch)
			}
			h.mu.Unlock()
		})
	}
}

// Publish delivers msg to every matching subscriber.
func (h *Hub) Publish(ctx context.Context, channel string, msg Message) error {
	d := Delivery{Channel: channel, Message: msg}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.filter.match(d) {
			continue
		}
		select {
		case s.ch <- d:
		default:
			h.dropped.Add(1)
			h.log.Warn("subscriber queue full, message dropped",
				slog.String("channel", channel),
				slog.String("conversation_id", msg.ConversationID),
			)
		}
	}
	return nil
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were dropped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close disconnects every subscriber.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		close(s.ch)
		delete(h.subs, id)
	}
	h.closed = true
	return nil
}
