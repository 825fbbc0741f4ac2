package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishScopedToOrganization(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chA := s.Subscribe(ctx, "org-a")
	chB := s.Subscribe(ctx, "org-b")

	s.Publish("org-a", PresenceEvent{UserID: "u1", Status: "working", Timestamp: time.Now()})

	select {
	case evt := <-chA:
		if evt.UserID != "u1" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("org-a subscriber did not receive event")
	}

	select {
	case evt := <-chB:
		t.Fatalf("org-b must not receive org-a events: %+v", evt)
	default:
	}
}

func TestSubscribeClosesOnContextCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch := s.Subscribe(ctx, "org-a")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
