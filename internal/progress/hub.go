package progress

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type subscriber struct {
	ch      chan Snapshot
	version int64
}

// Hub is an in-process fan-out of snapshots keyed by session. Publish never
// blocks: each subscriber holds at most one pending snapshot and a newer
// snapshot replaces an undelivered older one. Snapshots that are not newer
// than the one last handed to a subscriber are dropped for it.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[*subscriber]struct{}
	logger *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[uuid.UUID]map[*subscriber]struct{}),
		logger: logger.With("component", "progress_hub"),
	}
}

// Subscribe registers interest in sessionID. The returned function
// unsubscribes and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(sessionID uuid.UUID) (<-chan Snapshot, func()) {
	sub := &subscriber{ch: make(chan Snapshot, 1), version: -1}

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[sessionID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
			close(sub.ch)
		})
	}
}

// Publish hands s to every subscriber of its session.
func (h *Hub) Publish(_ context.Context, s Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[s.SessionID]
	h.logger.Debug("publishing snapshot",
		"session_id", s.SessionID,
		"version", s.Version,
		"status", s.Status,
		"subscribers", len(subs))

	for sub := range subs {
		if s.Version <= sub.version {
			continue
		}
		sub.version = s.Version
		select {
		case sub.ch <- s:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- s
		}
	}
	return nil
}

// Subscribers returns the number of open subscriptions for sessionID.
func (h *Hub) Subscribers(sessionID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}
