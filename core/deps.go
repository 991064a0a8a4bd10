package core

import (
	"context"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tether/schema"
)

// Backend delivers input to the agent or shell process behind a session.
type Backend interface {
	Write(ctx context.Context, req WriteRequest) error
	Interrupt(ctx context.Context, id schema.SessionID) error
}

// WriteRequest is one chunk of input routed to a session.
type WriteRequest struct {
	SessionID schema.SessionID
	TabID     schema.TabID
	Mode      schema.InputMode
	Data      string
}

// Messenger delivers replies to remote clients.
type Messenger interface {
	SendToClient(id schema.ClientID, msg any) bool
	SetSubscription(clientID schema.ClientID, sessionID schema.SessionID) bool
}

// Config tunes the manager's bounded stores.
type Config struct {
	// HistoryMax bounds the history store. Zero uses the default.
	HistoryMax int
	// LogMaxLines bounds each AI tab and shell log. Zero uses the default.
	LogMaxLines int
}

// Deps captures optional dependencies for the manager.
type Deps struct {
	Backend   Backend
	EventSink EventSink
	Messenger Messenger
	Logger    pslog.Logger
	Now       func() time.Time
}
