package core

import (
	"context"
	"errors"
	"strings"

	"pkt.systems/tether/internal/logx"
	"pkt.systems/tether/schema"
)

// Inbound WebSocket message types.
const (
	MessagePing        = "ping"
	MessageSubscribe   = "subscribe"
	MessageSendCommand = "send_command"
	MessageSwitchMode  = "switch_mode"
	MessageSelectTab   = "select_tab"
	MessageGetSessions = "get_sessions"
	MessageInterrupt   = "interrupt"
)

// HandleMessage applies one client message and replies through the messenger.
func (m *Manager) HandleMessage(clientID schema.ClientID, msg schema.ClientMessage) {
	log := logx.WithClient(m.log, clientID)
	ctx := logx.ContextWithClientLogger(context.Background(), m.log, clientID)
	sessionID := schema.SessionID(strings.TrimSpace(msg.String("sessionId")))

	switch msg.Type() {
	case MessagePing:
		m.reply(clientID, map[string]any{
			"type":      schema.FramePong,
			"timestamp": m.now().UnixMilli(),
		})
	case MessageSubscribe:
		if messenger := m.currentMessenger(); messenger != nil {
			messenger.SetSubscription(clientID, sessionID)
		}
		log.Debug("ws client subscribed", "session", sessionID)
		m.reply(clientID, map[string]any{
			"type":      schema.FrameSubscribed,
			"sessionId": sessionID,
		})
	case MessageSendCommand:
		command := msg.String("command")
		var err error
		if command == "" {
			err = schema.ErrInvalidRequest
		} else {
			tabID := schema.TabID(msg.String("tabId"))
			mode := schema.InputMode(msg.String("inputMode"))
			err = m.SendInput(ctx, sessionID, tabID, mode, command+"\n")
		}
		m.reply(clientID, result(schema.FrameCommandResult, sessionID, err))
	case MessageSwitchMode:
		mode := schema.InputMode(msg.String("mode"))
		frame := result(schema.FrameModeSwitchResult, sessionID, m.SetInputMode(sessionID, mode))
		frame["mode"] = mode
		m.reply(clientID, frame)
	case MessageSelectTab:
		tabID := schema.TabID(msg.String("tabId"))
		frame := result(schema.FrameTabSelected, sessionID, m.SelectTab(sessionID, tabID))
		frame["tabId"] = tabID
		m.reply(clientID, frame)
	case MessageGetSessions:
		m.reply(clientID, map[string]any{
			"type":     schema.FrameSessionsList,
			"sessions": m.EnrichedSessions(),
		})
	case MessageInterrupt:
		ok, err := m.InterruptSession(ctx, sessionID)
		if err == nil && !ok {
			err = errors.New("interrupt rejected")
		}
		m.reply(clientID, result(schema.FrameInterruptResult, sessionID, err))
	default:
		log.Debug("ws unknown message", "type", msg.Type())
		m.reply(clientID, map[string]any{
			"type":    schema.FrameError,
			"message": "Unknown message type: " + msg.Type(),
		})
	}
}

// EnrichedSessions returns sessions annotated with their live state.
func (m *Manager) EnrichedSessions() []schema.EnrichedSession {
	sessions := m.Sessions()
	out := make([]schema.EnrichedSession, 0, len(sessions))
	for _, data := range sessions {
		enriched := schema.EnrichedSession{SessionData: data}
		var live *schema.LiveSessionInfo
		if info, ok := m.LiveSessionInfo(data.ID); ok {
			live = &info
		}
		enriched.AgentSessionID, enriched.LiveInfo = schema.EnrichLive(data.AgentSessionID, live, live != nil)
		out = append(out, enriched)
	}
	return out
}

func result(frameType string, sessionID schema.SessionID, err error) map[string]any {
	frame := map[string]any{
		"type":      frameType,
		"success":   err == nil,
		"sessionId": sessionID,
	}
	if err != nil {
		frame["error"] = err.Error()
	}
	return frame
}

func (m *Manager) reply(clientID schema.ClientID, msg map[string]any) {
	messenger := m.currentMessenger()
	if messenger == nil {
		logx.WithClient(m.log, clientID).Debug("ws reply dropped", "type", msg["type"])
		return
	}
	messenger.SendToClient(clientID, msg)
}

func (m *Manager) currentMessenger() Messenger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.messenger
}
