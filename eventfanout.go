package tether

import (
	"pkt.systems/tether/core"
	"pkt.systems/tether/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnSessionEvent(event schema.SessionEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnSessionEvent(event)
	}
}

func (f eventFanout) OnOutput(event schema.OutputEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnOutput(event)
	}
}

func (f eventFanout) OnSettingsEvent(event schema.SettingsEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnSettingsEvent(event)
	}
}
