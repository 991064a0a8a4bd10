package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/tether/schema"
)

type contextKey int

const (
	clientKey contextKey = iota
	sessionKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithClient annotates the logger with a web client id when available.
func WithClient(log pslog.Logger, clientID schema.ClientID) pslog.Logger {
	if clientID != "" {
		log = log.With("client", clientID)
	}
	return log
}

// WithSession annotates the logger with a session id when available.
func WithSession(log pslog.Logger, sessionID schema.SessionID) pslog.Logger {
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// WithClientSession annotates the context logger with client and session ids,
// skipping fields already carried by the context.
func WithClientSession(ctx context.Context, clientID schema.ClientID, sessionID schema.SessionID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if current, ok := ctx.Value(clientKey).(schema.ClientID); !ok || current != clientID {
		log = WithClient(log, clientID)
	}
	if current, ok := ctx.Value(sessionKey).(schema.SessionID); !ok || current != sessionID {
		log = WithSession(log, sessionID)
	}
	return log
}

// ContextWithClientLogger attaches the logger and client marker to the context.
func ContextWithClientLogger(ctx context.Context, log pslog.Logger, clientID schema.ClientID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, WithClient(log, clientID))
	if clientID == "" {
		return ctx
	}
	return context.WithValue(ctx, clientKey, clientID)
}

// ContextWithSession stores the session marker on the context for log de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}
