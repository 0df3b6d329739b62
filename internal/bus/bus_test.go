package bus

import (
	"testing"
	"time"
)

func TestPublishReachesMatchingNamespace(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("doc.", 4)
	defer unsub()

	b.Publish(Event{Kind: "doc.changed", Timestamp: time.Now(), Payload: "chats"})

	select {
	case evt := <-ch:
		if evt.Kind != "doc.changed" {
			t.Errorf("kind = %q, want doc.changed", evt.Kind)
		}
		if evt.Payload.(string) != "chats" {
			t.Errorf("payload = %v, want chats", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPublishSkipsOtherNamespaces(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("auth.", 4)
	defer unsub()

	b.Publish(Event{Kind: "doc.changed", Timestamp: time.Now()})

	select {
	case evt := <-ch:
		t.Errorf("unexpected event %q on auth. subscription", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("doc.", 4)

	unsub()
	b.Publish(Event{Kind: "doc.changed", Timestamp: time.Now()})

	select {
	case evt := <-ch:
		t.Errorf("received %q after unsubscribe", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}

	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d after unsubscribe, want 0", n)
	}
}

func TestFullSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("doc.", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		// Second publish would block forever if Publish were blocking.
		b.Publish(Event{Kind: "doc.changed"})
		b.Publish(Event{Kind: "doc.changed"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on full subscriber")
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("doc.", 1)
	unsub()
	unsub()
	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", n)
	}
}
