package httpapi

import (
	"context"

	"pkt.systems/tether/schema"
)

// Callbacks is the gateway's only access to session state. Every field is
// optional; handlers check presence before each call and degrade when unset.
type Callbacks struct {
	GetSessions        func() []schema.SessionData
	GetSessionDetail   func(id schema.SessionID, tabID schema.TabID) *schema.SessionDetail
	GetTheme           func() *schema.Theme
	GetCustomCommands  func() []schema.CustomAICommand
	GetAutoRunStates   func() map[schema.SessionID]schema.AutoRunState
	GetLiveSessionInfo func(id schema.SessionID) (schema.LiveSessionInfo, bool)
	IsSessionLive      func(id schema.SessionID) bool
	WriteToSession     func(id schema.SessionID, data string) bool
	InterruptSession   func(ctx context.Context, id schema.SessionID) (bool, error)
	GetHistory         func(ctx context.Context, projectPath string, sessionID schema.SessionID) ([]schema.HistoryEntry, error)

	OnClientConnect    func(client ClientInfo)
	OnClientDisconnect func(clientID schema.ClientID)
	OnClientError      func(clientID schema.ClientID, err error)
	HandleMessage      func(clientID schema.ClientID, msg schema.ClientMessage)
}

// liveInfo computes the enrichment fields for one session.
func (cb Callbacks) liveInfo(id schema.SessionID, agentSessionID string) (string, schema.LiveInfo) {
	var live *schema.LiveSessionInfo
	if cb.GetLiveSessionInfo != nil {
		if info, ok := cb.GetLiveSessionInfo(id); ok {
			live = &info
		}
	}
	isLive := false
	if cb.IsSessionLive != nil {
		isLive = cb.IsSessionLive(id)
	}
	return schema.EnrichLive(agentSessionID, live, isLive)
}

func (cb Callbacks) enrichSessions(sessions []schema.SessionData) []schema.EnrichedSession {
	out := make([]schema.EnrichedSession, 0, len(sessions))
	for _, session := range sessions {
		enriched := schema.EnrichedSession{SessionData: session}
		enriched.AgentSessionID, enriched.LiveInfo = cb.liveInfo(session.ID, session.AgentSessionID)
		out = append(out, enriched)
	}
	return out
}

func (cb Callbacks) enrichDetail(detail schema.SessionDetail) schema.EnrichedSessionDetail {
	enriched := schema.EnrichedSessionDetail{SessionDetail: detail}
	enriched.AgentSessionID, enriched.LiveInfo = cb.liveInfo(detail.ID, detail.AgentSessionID)
	if enriched.AILogs == nil {
		enriched.AILogs = []schema.LogEntry{}
	}
	if enriched.ShellLogs == nil {
		enriched.ShellLogs = []schema.LogEntry{}
	}
	return enriched
}
