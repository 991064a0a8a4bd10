package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tether/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventSession carries session lifecycle and state updates.
	EventSession EventType = "session"
	// EventOutput carries a new log entry for a session.
	EventOutput EventType = "output"
	// EventSettings carries theme and custom command updates.
	EventSettings EventType = "settings"
)

// Event represents a client-facing event emitted by the session manager.
type Event struct {
	Type     EventType
	Session  schema.SessionEvent
	Output   schema.OutputEvent
	Settings schema.SettingsEvent
}

// Bus fans events out to subscribers without blocking the publisher.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
			if b.log != nil {
				b.log.Debug("eventbus unsubscribe")
			}
		})
	}
}

// OnSessionEvent publishes a session event.
func (b *Bus) OnSessionEvent(event schema.SessionEvent) {
	b.publish(Event{Type: EventSession, Session: event})
}

// OnOutput publishes an output event.
func (b *Bus) OnOutput(event schema.OutputEvent) {
	b.publish(Event{Type: EventOutput, Output: event})
}

// OnSettingsEvent publishes a settings event.
func (b *Bus) OnSettingsEvent(event schema.SettingsEvent) {
	b.publish(Event{Type: EventSettings, Settings: event})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) == 0 {
		return
	}
	dropped := 0
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}
