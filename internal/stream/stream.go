package stream

import (
	"context"
	"sync"
	"time"
)

// PresenceEvent describes a presence change for one user, broadcast to the
// user's organization.
type PresenceEvent struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type subscriber struct {
	orgID string
	ch    chan PresenceEvent
}

// Stream fan-outs presence events to subscribers grouped by organization
// (SSE/WebSocket clients). Only the broadcast contract lives here; the
// transport is owned by the boundary layer.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]*subscriber)}
}

// Subscribe registers a subscriber for one organization's events and returns
// the channel which will receive them. The channel is closed when the
// provided context ends.
func (s *Stream) Subscribe(ctx context.Context, orgID string) <-chan PresenceEvent {
	sub := &subscriber{orgID: orgID, ch: make(chan PresenceEvent, 16)}

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = sub
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(sub.ch)
		s.mu.Unlock()
	}()

	return sub.ch
}

// Publish fan-outs the event to every subscriber of the organization.
func (s *Stream) Publish(orgID string, evt PresenceEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.orgID != orgID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
