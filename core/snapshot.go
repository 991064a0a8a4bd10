package core

import (
	"pkt.systems/tether/internal/persist"
	"pkt.systems/tether/schema"
)

// Snapshot exports the manager state for persistence.
func (m *Manager) Snapshot() persist.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state := persist.State{
		Sessions:       make([]persist.SessionRecord, 0, len(m.order)),
		CustomCommands: append([]schema.CustomAICommand(nil), m.commands...),
		History:        m.history.Entries(),
	}
	if m.theme != nil {
		theme := m.theme.Clone()
		state.Theme = &theme
	}
	for _, id := range m.order {
		s := m.sessions[id]
		record := persist.SessionRecord{
			SessionData: cloneSessionData(s.data),
			ShellLogs:   s.shellLogs.Entries(),
		}
		if len(s.aiLogs) > 0 {
			record.AILogs = make(map[schema.TabID][]schema.LogEntry, len(s.aiLogs))
			for tabID, buf := range s.aiLogs {
				record.AILogs[tabID] = buf.Entries()
			}
		}
		if s.live != nil {
			live := *s.live
			record.Live = &live
		}
		if s.autoRun != nil {
			run := *s.autoRun
			record.AutoRun = &run
		}
		state.Sessions = append(state.Sessions, record)
	}
	return state
}

// Restore replaces the manager state without emitting events. Sessions with
// an empty or duplicate ID are skipped.
func (m *Manager) Restore(state persist.State) {
	sessions := make(map[schema.SessionID]*session, len(state.Sessions))
	order := make([]schema.SessionID, 0, len(state.Sessions))
	for _, record := range state.Sessions {
		data := cloneSessionData(record.SessionData)
		if data.ID == "" || sessions[data.ID] != nil {
			m.log.Warn("manager restore skipped session", "session", data.ID)
			continue
		}
		if !validInputMode(data.InputMode) {
			data.InputMode = schema.InputModeAI
		}
		if data.State == "" {
			data.State = schema.StateIdle
		}
		s := &session{
			data:      data,
			aiLogs:    make(map[schema.TabID]*logBuffer, len(record.AILogs)),
			shellLogs: newLogBufferFromPersisted(record.ShellLogs, m.cfg.LogMaxLines),
		}
		for tabID, entries := range record.AILogs {
			s.aiLogs[tabID] = newLogBufferFromPersisted(entries, m.cfg.LogMaxLines)
		}
		if record.Live != nil {
			live := *record.Live
			live.SessionID = data.ID
			s.live = &live
		}
		if record.AutoRun != nil {
			run := *record.AutoRun
			s.autoRun = &run
		}
		sessions[data.ID] = s
		order = append(order, data.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = sessions
	m.order = order
	m.theme = nil
	if state.Theme != nil {
		theme := state.Theme.Clone()
		m.theme = &theme
	}
	m.commands = append([]schema.CustomAICommand(nil), state.CustomCommands...)
	m.history = newHistoryFromPersisted(state.History, m.cfg.HistoryMax)
	m.log.Debug("manager state restored", "sessions", len(order), "history", len(state.History))
}
