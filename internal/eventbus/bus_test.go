package eventbus

import (
	"testing"
	"time"

	"pkt.systems/tether/schema"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	event := schema.OutputEvent{SessionID: "s1", Entry: schema.LogEntry{ID: "l1", Text: "hi"}}
	bus.OnOutput(event)

	select {
	case got := <-ch:
		if got.Type != EventOutput {
			t.Fatalf("expected output event, got %v", got.Type)
		}
		if got.Output.SessionID != event.SessionID || got.Output.Entry.Text != "hi" {
			t.Fatalf("unexpected payload: %+v", got.Output)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	bus := New(nil)
	a, cancelA := bus.Subscribe()
	defer cancelA()
	b, cancelB := bus.Subscribe()
	defer cancelB()

	bus.OnSessionEvent(schema.SessionEvent{Type: schema.SessionAdded, SessionID: "s1"})
	bus.OnSettingsEvent(schema.SettingsEvent{Type: schema.SettingsTheme})

	for _, ch := range []<-chan Event{a, b} {
		first := <-ch
		if first.Type != EventSession || first.Session.SessionID != "s1" {
			t.Fatalf("first event = %+v", first)
		}
		second := <-ch
		if second.Type != EventSettings || second.Settings.Type != schema.SettingsTheme {
			t.Fatalf("second event = %+v", second)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
	bus.OnOutput(schema.OutputEvent{SessionID: "s1"})
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	_, cancel := bus.Subscribe()
	defer cancel()

	bus.OnOutput(schema.OutputEvent{SessionID: "s1"})
	done := make(chan struct{})
	go func() {
		bus.OnOutput(schema.OutputEvent{SessionID: "s1"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full channel")
	}
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *Bus
	ch, cancel := bus.Subscribe()
	cancel()
	if ch != nil {
		t.Fatalf("expected nil channel")
	}
	bus.OnOutput(schema.OutputEvent{})
}
