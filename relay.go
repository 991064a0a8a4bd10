package tether

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/tether/httpapi"
	"pkt.systems/tether/internal/eventbus"
	"pkt.systems/tether/schema"
)

// broadcaster is the gateway surface the relay pushes frames into.
type broadcaster interface {
	Broadcast(msg any, match func(httpapi.ClientInfo) bool) int
}

// relay drains bus events into client broadcasts until ctx is done or the
// subscription closes.
func relay(ctx context.Context, events <-chan eventbus.Event, out broadcaster, now func() int64) {
	log := pslog.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			frame, match := relayFrame(event, now)
			if frame == nil {
				continue
			}
			sent := out.Broadcast(frame, match)
			log.Trace("relay broadcast", "frame", frame["type"], "clients", sent)
		}
	}
}

// relayFrame converts one event into a client frame and an optional recipient
// filter. A nil frame means the event has no client-facing form.
func relayFrame(event eventbus.Event, now func() int64) (map[string]any, func(httpapi.ClientInfo) bool) {
	switch event.Type {
	case eventbus.EventOutput:
		return outputFrame(event.Output, now), subscribedTo(event.Output.SessionID)
	case eventbus.EventSettings:
		return settingsFrame(event.Settings), nil
	case eventbus.EventSession:
		return sessionFrame(event.Session, now), nil
	}
	return nil, nil
}

func outputFrame(event schema.OutputEvent, now func() int64) map[string]any {
	mode := schema.InputModeAI
	if event.Terminal {
		mode = schema.InputModeTerminal
	}
	frame := map[string]any{
		"type":      schema.FrameSessionOutput,
		"sessionId": event.SessionID,
		"inputMode": mode,
		"source":    event.Entry.Source,
		"data":      event.Entry.Text,
		"entry":     event.Entry,
		"timestamp": now(),
	}
	if event.Entry.TabID != "" {
		frame["tabId"] = event.Entry.TabID
	}
	return frame
}

func settingsFrame(event schema.SettingsEvent) map[string]any {
	switch event.Type {
	case schema.SettingsTheme:
		if event.Theme == nil {
			return nil
		}
		return map[string]any{"type": schema.FrameTheme, "theme": event.Theme}
	case schema.SettingsCustomCommands:
		commands := event.Commands
		if commands == nil {
			commands = []schema.CustomAICommand{}
		}
		return map[string]any{"type": schema.FrameCustomCommands, "commands": commands}
	}
	return nil
}

func sessionFrame(event schema.SessionEvent, now func() int64) map[string]any {
	switch event.Type {
	case schema.SessionAdded:
		if event.Session == nil {
			return nil
		}
		return map[string]any{
			"type":      schema.FrameSessionAdded,
			"sessionId": event.SessionID,
			"session":   event.Session,
			"timestamp": now(),
		}
	case schema.SessionRemoved:
		return map[string]any{
			"type":      schema.FrameSessionRemoved,
			"sessionId": event.SessionID,
			"timestamp": now(),
		}
	case schema.SessionChanged:
		if event.Session == nil {
			return nil
		}
		return map[string]any{
			"type":      schema.FrameSessionStateChange,
			"sessionId": event.SessionID,
			"state":     event.Session.State,
			"inputMode": event.Session.InputMode,
			"session":   event.Session,
			"timestamp": now(),
		}
	case schema.SessionLiveChanged:
		if event.Live == nil {
			return map[string]any{
				"type":      schema.FrameSessionOffline,
				"sessionId": event.SessionID,
				"timestamp": now(),
			}
		}
		return map[string]any{
			"type":           schema.FrameSessionLive,
			"sessionId":      event.SessionID,
			"agentSessionId": event.Live.AgentSessionID,
			"enabledAt":      event.Live.EnabledAt,
			"timestamp":      now(),
		}
	case schema.SessionAutoRun:
		if event.AutoRun == nil {
			return nil
		}
		return map[string]any{
			"type":      schema.FrameAutoRunState,
			"sessionId": event.SessionID,
			"state":     event.AutoRun,
		}
	case schema.SessionTabs:
		if event.Session == nil {
			return nil
		}
		tabs := event.Session.AITabs
		if tabs == nil {
			tabs = []schema.AITab{}
		}
		return map[string]any{
			"type":        schema.FrameTabsChanged,
			"sessionId":   event.SessionID,
			"aiTabs":      tabs,
			"activeTabId": event.Session.ActiveTabID,
			"timestamp":   now(),
		}
	}
	return nil
}

// subscribedTo matches clients following sessionID and clients without a
// subscription.
func subscribedTo(sessionID schema.SessionID) func(httpapi.ClientInfo) bool {
	return func(info httpapi.ClientInfo) bool {
		return info.SubscribedSessionID == "" || info.SubscribedSessionID == sessionID
	}
}
