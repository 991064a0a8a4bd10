package core

import "pkt.systems/tether/schema"

// EventSink receives session, output, and settings events from the manager.
type EventSink interface {
	OnSessionEvent(event schema.SessionEvent)
	OnOutput(event schema.OutputEvent)
	OnSettingsEvent(event schema.SettingsEvent)
}
