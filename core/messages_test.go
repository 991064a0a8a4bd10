package core

import (
	"sync"
	"testing"

	"pkt.systems/tether/schema"
)

type fakeMessenger struct {
	mu            sync.Mutex
	sent          map[schema.ClientID][]map[string]any
	subscriptions map[schema.ClientID]schema.SessionID
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		sent:          make(map[schema.ClientID][]map[string]any),
		subscriptions: make(map[schema.ClientID]schema.SessionID),
	}
}

func (f *fakeMessenger) SendToClient(id schema.ClientID, msg any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[id] = append(f.sent[id], msg.(map[string]any))
	return true
}

func (f *fakeMessenger) SetSubscription(clientID schema.ClientID, sessionID schema.SessionID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions[clientID] = sessionID
	return true
}

func (f *fakeMessenger) last(t *testing.T, id schema.ClientID) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	frames := f.sent[id]
	if len(frames) == 0 {
		t.Fatalf("no frames sent to %s", id)
	}
	return frames[len(frames)-1]
}

const testClient = schema.ClientID("web-client-1")

func TestHandleMessagePingAndUnknown(t *testing.T) {
	m, _ := newTestManager(t, nil)
	messenger := newFakeMessenger()
	m.SetMessenger(messenger)

	m.HandleMessage(testClient, schema.ClientMessage{"type": "ping"})
	pong := messenger.last(t, testClient)
	if pong["type"] != schema.FramePong || pong["timestamp"] != fixedNow.UnixMilli() {
		t.Fatalf("pong = %+v", pong)
	}

	m.HandleMessage(testClient, schema.ClientMessage{"type": "launch_rockets"})
	frame := messenger.last(t, testClient)
	if frame["type"] != schema.FrameError || frame["message"] != "Unknown message type: launch_rockets" {
		t.Fatalf("error frame = %+v", frame)
	}

	m.HandleMessage(testClient, schema.ClientMessage{})
	if frame := messenger.last(t, testClient); frame["type"] != schema.FrameError {
		t.Fatalf("missing type frame = %+v", frame)
	}
}

func TestHandleMessageSubscribe(t *testing.T) {
	m, _ := newTestManager(t, nil)
	messenger := newFakeMessenger()
	m.SetMessenger(messenger)

	m.HandleMessage(testClient, schema.ClientMessage{"type": "subscribe", "sessionId": "s1"})
	if messenger.subscriptions[testClient] != "s1" {
		t.Fatalf("subscription = %q", messenger.subscriptions[testClient])
	}
	frame := messenger.last(t, testClient)
	if frame["type"] != schema.FrameSubscribed || frame["sessionId"] != schema.SessionID("s1") {
		t.Fatalf("subscribed frame = %+v", frame)
	}
}

func TestHandleMessageSendCommand(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestManager(t, backend)
	messenger := newFakeMessenger()
	m.SetMessenger(messenger)

	m.HandleMessage(testClient, schema.ClientMessage{"type": "send_command", "sessionId": "s1", "command": "ls", "inputMode": "terminal"})
	frame := messenger.last(t, testClient)
	if frame["type"] != schema.FrameCommandResult || frame["success"] != true {
		t.Fatalf("result = %+v", frame)
	}
	if len(backend.writes) != 1 || backend.writes[0].Data != "ls\n" || backend.writes[0].Mode != schema.InputModeTerminal {
		t.Fatalf("backend writes = %+v", backend.writes)
	}

	m.HandleMessage(testClient, schema.ClientMessage{"type": "send_command", "sessionId": "s1", "command": 12})
	if frame := messenger.last(t, testClient); frame["success"] != false || frame["error"] == nil {
		t.Fatalf("non-string command result = %+v", frame)
	}

	m.HandleMessage(testClient, schema.ClientMessage{"type": "send_command", "sessionId": "missing", "command": "ls"})
	if frame := messenger.last(t, testClient); frame["success"] != false || frame["error"] != schema.ErrSessionNotFound.Error() {
		t.Fatalf("unknown session result = %+v", frame)
	}
}

func TestHandleMessageModeTabInterrupt(t *testing.T) {
	m, _ := newTestManager(t, nil)
	messenger := newFakeMessenger()
	m.SetMessenger(messenger)

	m.HandleMessage(testClient, schema.ClientMessage{"type": "switch_mode", "sessionId": "s1", "mode": "terminal"})
	frame := messenger.last(t, testClient)
	if frame["type"] != schema.FrameModeSwitchResult || frame["success"] != true || frame["mode"] != schema.InputModeTerminal {
		t.Fatalf("mode result = %+v", frame)
	}

	m.HandleMessage(testClient, schema.ClientMessage{"type": "select_tab", "sessionId": "s1", "tabId": "t2"})
	frame = messenger.last(t, testClient)
	if frame["type"] != schema.FrameTabSelected || frame["success"] != true {
		t.Fatalf("tab result = %+v", frame)
	}
	if s, _ := m.Session("s1"); s.ActiveTabID != "t2" {
		t.Fatalf("active tab = %q", s.ActiveTabID)
	}

	m.HandleMessage(testClient, schema.ClientMessage{"type": "select_tab", "sessionId": "s1", "tabId": "nope"})
	if frame := messenger.last(t, testClient); frame["success"] != false {
		t.Fatalf("unknown tab result = %+v", frame)
	}

	m.HandleMessage(testClient, schema.ClientMessage{"type": "interrupt", "sessionId": "s1"})
	frame = messenger.last(t, testClient)
	if frame["type"] != schema.FrameInterruptResult || frame["success"] != true {
		t.Fatalf("interrupt result = %+v", frame)
	}
}

func TestHandleMessageGetSessions(t *testing.T) {
	m, _ := newTestManager(t, nil)
	messenger := newFakeMessenger()
	m.SetMessenger(messenger)
	_ = m.SetLive("s2", "", true)

	m.HandleMessage(testClient, schema.ClientMessage{"type": "get_sessions"})
	frame := messenger.last(t, testClient)
	if frame["type"] != schema.FrameSessionsList {
		t.Fatalf("frame = %+v", frame)
	}
	sessions := frame["sessions"].([]schema.EnrichedSession)
	if len(sessions) != 2 || sessions[0].IsLive || !sessions[1].IsLive {
		t.Fatalf("sessions = %+v", sessions)
	}
}

func TestHandleMessageWithoutMessenger(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.HandleMessage(testClient, schema.ClientMessage{"type": "ping"})
}
