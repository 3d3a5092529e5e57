package eventbus

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHub_PublishDeliversToSubscribers(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := h.Subscribe(ctx, 4)
	b := h.Subscribe(ctx, 4)

	h.Publish(Event{Type: TypeXPGranted, Data: map[string]any{"amount": 10}})

	for i, ch := range []<-chan Event{a, b} {
		select {
		case evt := <-ch:
			if evt.Type != TypeXPGranted {
				t.Fatalf("sub %d type=%q, want %q", i, evt.Type, TypeXPGranted)
			}
			if evt.Timestamp == 0 {
				t.Fatalf("sub %d timestamp not filled", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("sub %d did not receive event", i)
		}
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.Subscribe(ctx, 1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(NewEvent(TypeLevelUp, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
	if got := len(ch); got != 1 {
		t.Fatalf("buffered=%d, want 1", got)
	}
}

func TestHub_UnsubscribeOnCancel(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx, 0)
	if got := h.Subscribers(); got != 1 {
		t.Fatalf("subscribers=%d, want 1", got)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after cancel")
	}
	if got := h.Subscribers(); got != 0 {
		t.Fatalf("subscribers=%d, want 0", got)
	}
}

func TestHub_NilSafe(t *testing.T) {
	var h *Hub
	h.Publish(Event{Type: TypeRulesReloaded})
	if h.Subscribers() != 0 {
		t.Fatalf("nil hub should report 0 subscribers")
	}
}
