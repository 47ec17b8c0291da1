package authstate

import (
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	return Event{}
}

func TestHub_PublishReachesSubscribers(t *testing.T) {
	h := NewHub()
	a, unsubA := h.Subscribe(4)
	defer unsubA()
	b, unsubB := h.Subscribe(4)
	defer unsubB()

	h.Publish(Event{Kind: SignedIn, UID: "u1"})

	if e := recv(t, a); e.UID != "u1" || e.Kind != SignedIn {
		t.Errorf("subscriber a got %+v", e)
	}
	if e := recv(t, b); e.UID != "u1" {
		t.Errorf("subscriber b got %+v", e)
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe(1)
	unsub()
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	h.Publish(Event{Kind: SignedOut, UID: "u1"})
}

func TestHub_FullSubscriberDropsEvents(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe(1)
	defer unsub()

	h.Publish(Event{Kind: SignedIn, UID: "first"})
	h.Publish(Event{Kind: SignedIn, UID: "second"})

	if e := recv(t, ch); e.UID != "first" {
		t.Errorf("expected first event, got %+v", e)
	}
	select {
	case e := <-ch:
		t.Fatalf("expected second event to be dropped, got %+v", e)
	default:
	}
}

func TestHub_SinksSeePublishNotDeliver(t *testing.T) {
	h := NewHub()
	var seen []Event
	h.OnPublish(func(e Event) { seen = append(seen, e) })

	h.Publish(Event{Kind: Deleted, UID: "local"})
	h.Deliver(Event{Kind: Deleted, UID: "remote"})

	if len(seen) != 1 || seen[0].UID != "local" {
		t.Errorf("sink saw %+v", seen)
	}
}

func TestHub_CloseReleasesSubscribers(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe(1)
	h.Close()
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after hub close")
	}

	late, _ := h.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatal("subscribe after close should return a closed channel")
	}
}
