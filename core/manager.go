package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tether/internal/logx"
	"pkt.systems/tether/schema"
)

// session is the manager's record of one agent session.
type session struct {
	data      schema.SessionData
	aiLogs    map[schema.TabID]*logBuffer
	shellLogs *logBuffer
	live      *schema.LiveSessionInfo
	autoRun   *schema.AutoRunState
}

func (s *session) aiLog(tabID schema.TabID, maxLines int) *logBuffer {
	buf := s.aiLogs[tabID]
	if buf == nil {
		buf = newLogBuffer(maxLines)
		s.aiLogs[tabID] = buf
	}
	return buf
}

func (s *session) resolveTab(tabID schema.TabID) schema.TabID {
	if tabID == "" {
		return s.data.ActiveTabID
	}
	return tabID
}

// Manager is the authoritative in-memory owner of sessions, live flags,
// auto-run state, theme, custom commands, history, and logs.
type Manager struct {
	cfg     Config
	backend Backend
	sink    EventSink
	log     pslog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	sessions  map[schema.SessionID]*session
	order     []schema.SessionID
	theme     *schema.Theme
	commands  []schema.CustomAICommand
	history   *historyStore
	messenger Messenger
}

// NewManager constructs an empty manager.
func NewManager(cfg Config, deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if cfg.LogMaxLines <= 0 {
		cfg.LogMaxLines = defaultLogMaxLines
	}
	if cfg.HistoryMax <= 0 {
		cfg.HistoryMax = defaultHistoryMax
	}
	return &Manager{
		cfg:       cfg,
		backend:   deps.Backend,
		sink:      deps.EventSink,
		log:       logger,
		now:       now,
		sessions:  make(map[schema.SessionID]*session),
		history:   newHistoryStore(cfg.HistoryMax),
		messenger: deps.Messenger,
	}
}

// SetMessenger attaches the client reply channel used by HandleMessage.
func (m *Manager) SetMessenger(messenger Messenger) {
	m.mu.Lock()
	m.messenger = messenger
	m.mu.Unlock()
}

// Sessions returns copies of all sessions in insertion order.
func (m *Manager) Sessions() []schema.SessionData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schema.SessionData, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneSessionData(m.sessions[id].data))
	}
	return out
}

// Session returns a copy of one session.
func (m *Manager) Session(id schema.SessionID) (schema.SessionData, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.sessions[id]
	if s == nil {
		return schema.SessionData{}, false
	}
	return cloneSessionData(s.data), true
}

// SessionDetail returns the session with the AI log of tabID (the active tab
// when empty) and the shell log. It returns nil for unknown sessions.
func (m *Manager) SessionDetail(id schema.SessionID, tabID schema.TabID) *schema.SessionDetail {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.sessions[id]
	if s == nil {
		return nil
	}
	return &schema.SessionDetail{
		SessionData: cloneSessionData(s.data),
		AILogs:      s.aiLogs[s.resolveTab(tabID)].Entries(),
		ShellLogs:   s.shellLogs.Entries(),
	}
}

// Theme returns the current theme or nil when none is set.
func (m *Manager) Theme() *schema.Theme {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.theme == nil {
		return nil
	}
	theme := m.theme.Clone()
	return &theme
}

// CustomCommands returns the configured custom AI commands.
func (m *Manager) CustomCommands() []schema.CustomAICommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]schema.CustomAICommand{}, m.commands...)
}

// AutoRunStates returns the last reported auto-run state per session.
func (m *Manager) AutoRunStates() map[schema.SessionID]schema.AutoRunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[schema.SessionID]schema.AutoRunState)
	for id, s := range m.sessions {
		if s.autoRun != nil {
			out[id] = *s.autoRun
		}
	}
	return out
}

// LiveSessionInfo reports when the session was opened for remote access.
func (m *Manager) LiveSessionInfo(id schema.SessionID) (schema.LiveSessionInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.sessions[id]
	if s == nil || s.live == nil {
		return schema.LiveSessionInfo{}, false
	}
	return *s.live, true
}

// IsSessionLive reports whether the session is open for remote access.
func (m *Manager) IsSessionLive(id schema.SessionID) bool {
	_, ok := m.LiveSessionInfo(id)
	return ok
}

// History returns entries matching the filters, newest first.
func (m *Manager) History(ctx context.Context, projectPath string, sessionID schema.SessionID) ([]schema.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.List(projectPath, sessionID), nil
}

// UpsertSession adds a session or replaces the metadata of an existing one.
// Logs, live flags, and auto-run state of an existing session are kept.
func (m *Manager) UpsertSession(data schema.SessionData) (schema.SessionData, error) {
	data = cloneSessionData(data)
	data.ID = schema.SessionID(strings.TrimSpace(string(data.ID)))
	if data.ID == "" {
		data.ID = schema.SessionID(newID())
	}
	if data.InputMode == "" {
		data.InputMode = schema.InputModeAI
	}
	if !validInputMode(data.InputMode) {
		return schema.SessionData{}, fmt.Errorf("%w: %q", schema.ErrInvalidInputMode, data.InputMode)
	}
	if data.State == "" {
		data.State = schema.StateIdle
	}
	if data.ActiveTabID == "" && len(data.AITabs) > 0 {
		data.ActiveTabID = data.AITabs[0].ID
	}

	m.mu.Lock()
	eventType := schema.SessionChanged
	s := m.sessions[data.ID]
	if s == nil {
		s = &session{
			aiLogs:    make(map[schema.TabID]*logBuffer),
			shellLogs: newLogBuffer(m.cfg.LogMaxLines),
		}
		m.sessions[data.ID] = s
		m.order = append(m.order, data.ID)
		eventType = schema.SessionAdded
	}
	s.data = data
	out := cloneSessionData(data)
	m.mu.Unlock()

	logx.WithSession(m.log, data.ID).Debug("manager session upserted", "event", eventType)
	m.emitSession(schema.SessionEvent{Type: eventType, SessionID: data.ID, Session: &out})
	return cloneSessionData(out), nil
}

// RemoveSession deletes a session and its logs.
func (m *Manager) RemoveSession(id schema.SessionID) error {
	m.mu.Lock()
	if m.sessions[id] == nil {
		m.mu.Unlock()
		return schema.ErrSessionNotFound
	}
	delete(m.sessions, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	logx.WithSession(m.log, id).Debug("manager session removed")
	m.emitSession(schema.SessionEvent{Type: schema.SessionRemoved, SessionID: id})
	return nil
}

// SetLive opens or closes a session for remote access.
func (m *Manager) SetLive(id schema.SessionID, agentSessionID string, enabled bool) error {
	m.mu.Lock()
	s := m.sessions[id]
	if s == nil {
		m.mu.Unlock()
		return schema.ErrSessionNotFound
	}
	if enabled {
		s.live = &schema.LiveSessionInfo{
			SessionID:      id,
			AgentSessionID: agentSessionID,
			EnabledAt:      m.now().UnixMilli(),
		}
	} else {
		s.live = nil
	}
	event := schema.SessionEvent{Type: schema.SessionLiveChanged, SessionID: id}
	if s.live != nil {
		live := *s.live
		event.Live = &live
	}
	data := cloneSessionData(s.data)
	event.Session = &data
	m.mu.Unlock()

	logx.WithSession(m.log, id).Info("manager session live", "enabled", enabled)
	m.emitSession(event)
	return nil
}

// SetAutoRunState records the batch run progress of a session.
func (m *Manager) SetAutoRunState(id schema.SessionID, state schema.AutoRunState) error {
	m.mu.Lock()
	s := m.sessions[id]
	if s == nil {
		m.mu.Unlock()
		return schema.ErrSessionNotFound
	}
	s.autoRun = &state
	m.mu.Unlock()

	run := state
	m.emitSession(schema.SessionEvent{Type: schema.SessionAutoRun, SessionID: id, AutoRun: &run})
	return nil
}

// SetSessionState updates the coarse run state of a session.
func (m *Manager) SetSessionState(id schema.SessionID, state schema.SessionState) error {
	m.mu.Lock()
	s := m.sessions[id]
	if s == nil {
		m.mu.Unlock()
		return schema.ErrSessionNotFound
	}
	s.data.State = state
	data := cloneSessionData(s.data)
	m.mu.Unlock()

	m.emitSession(schema.SessionEvent{Type: schema.SessionChanged, SessionID: id, Session: &data})
	return nil
}

// SetTheme replaces the theme mirrored to remote clients.
func (m *Manager) SetTheme(theme schema.Theme) {
	stored := theme.Clone()
	m.mu.Lock()
	m.theme = &stored
	m.mu.Unlock()

	out := theme.Clone()
	m.emitSettings(schema.SettingsEvent{Type: schema.SettingsTheme, Theme: &out})
}

// SetCustomCommands replaces the custom AI command list.
func (m *Manager) SetCustomCommands(commands []schema.CustomAICommand) {
	m.mu.Lock()
	m.commands = append([]schema.CustomAICommand{}, commands...)
	m.mu.Unlock()

	m.emitSettings(schema.SettingsEvent{
		Type:     schema.SettingsCustomCommands,
		Commands: append([]schema.CustomAICommand{}, commands...),
	})
}

// AppendHistory stores a completed interaction. Missing ID, timestamp, type,
// and session name or project path are filled in.
func (m *Manager) AppendHistory(entry schema.HistoryEntry) (schema.HistoryEntry, bool) {
	if entry.ID == "" {
		entry.ID = newID()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = m.now().UnixMilli()
	}
	if entry.Type == "" {
		entry.Type = schema.HistoryUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[entry.SessionID]; s != nil {
		if entry.SessionName == "" {
			entry.SessionName = s.data.Name
		}
		if entry.ProjectPath == "" {
			entry.ProjectPath = s.data.Cwd
		}
	}
	return entry, m.history.Append(entry)
}

// AppendOutput records agent output on an AI tab (the active tab when empty).
func (m *Manager) AppendOutput(id schema.SessionID, tabID schema.TabID, source, text string) (schema.LogEntry, error) {
	m.mu.Lock()
	s := m.sessions[id]
	if s == nil {
		m.mu.Unlock()
		return schema.LogEntry{}, schema.ErrSessionNotFound
	}
	tabID = s.resolveTab(tabID)
	entry := m.newEntry(source, text, tabID)
	s.aiLog(tabID, m.cfg.LogMaxLines).Append(entry)
	var changed *schema.SessionData
	if source == schema.SourceStdout {
		s.data.LastResponse = &schema.LastResponse{Text: text, Timestamp: entry.Timestamp, Source: source}
		data := cloneSessionData(s.data)
		changed = &data
	}
	m.mu.Unlock()

	m.emitOutput(schema.OutputEvent{SessionID: id, Entry: entry})
	if changed != nil {
		m.emitSession(schema.SessionEvent{Type: schema.SessionChanged, SessionID: id, Session: changed})
	}
	return entry, nil
}

// AppendShellOutput records terminal output for a session.
func (m *Manager) AppendShellOutput(id schema.SessionID, source, text string) (schema.LogEntry, error) {
	m.mu.Lock()
	s := m.sessions[id]
	if s == nil {
		m.mu.Unlock()
		return schema.LogEntry{}, schema.ErrSessionNotFound
	}
	entry := m.newEntry(source, text, "")
	s.shellLogs.Append(entry)
	m.mu.Unlock()

	m.emitOutput(schema.OutputEvent{SessionID: id, Terminal: true, Entry: entry})
	return entry, nil
}

// WriteToSession sends data using the session's current input mode and active tab.
func (m *Manager) WriteToSession(id schema.SessionID, data string) bool {
	return m.SendInput(context.Background(), id, "", "", data) == nil
}

// SendInput records data as user input, marks the session busy, and forwards
// it to the backend. Empty mode and tab use the session's current values.
func (m *Manager) SendInput(ctx context.Context, id schema.SessionID, tabID schema.TabID, mode schema.InputMode, data string) error {
	log := logx.WithSession(logx.Ctx(ctx), id)
	m.mu.Lock()
	s := m.sessions[id]
	if s == nil {
		m.mu.Unlock()
		log.Debug("manager input rejected", "reason", "unknown session")
		return schema.ErrSessionNotFound
	}
	if mode == "" {
		mode = s.data.InputMode
	}
	if !validInputMode(mode) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", schema.ErrInvalidInputMode, mode)
	}
	text := strings.TrimRight(data, "\r\n")
	terminal := mode == schema.InputModeTerminal
	var entry schema.LogEntry
	if terminal {
		tabID = ""
		entry = m.newEntry(schema.SourceUser, text, "")
		s.shellLogs.Append(entry)
	} else {
		tabID = s.resolveTab(tabID)
		entry = m.newEntry(schema.SourceUser, text, tabID)
		s.aiLog(tabID, m.cfg.LogMaxLines).Append(entry)
	}
	s.data.State = schema.StateBusy
	snapshot := cloneSessionData(s.data)
	backend := m.backend
	m.mu.Unlock()

	m.emitOutput(schema.OutputEvent{SessionID: id, Terminal: terminal, Entry: entry})
	m.emitSession(schema.SessionEvent{Type: schema.SessionChanged, SessionID: id, Session: &snapshot})

	if backend == nil {
		log.Debug("manager input recorded", "mode", mode, "bytes", len(data))
		return nil
	}
	if err := backend.Write(ctx, WriteRequest{SessionID: id, TabID: tabID, Mode: mode, Data: data}); err != nil {
		log.Warn("manager input failed", "mode", mode, "err", err)
		return fmt.Errorf("write to session %s: %w", id, err)
	}
	log.Debug("manager input sent", "mode", mode, "bytes", len(data))
	return nil
}

// InterruptSession stops the running agent turn and marks the session idle.
func (m *Manager) InterruptSession(ctx context.Context, id schema.SessionID) (bool, error) {
	log := logx.WithSession(logx.Ctx(ctx), id)
	m.mu.RLock()
	_, ok := m.sessions[id]
	backend := m.backend
	m.mu.RUnlock()
	if !ok {
		return false, schema.ErrSessionNotFound
	}
	if backend != nil {
		if err := backend.Interrupt(ctx, id); err != nil {
			log.Warn("manager interrupt failed", "err", err)
			return false, err
		}
	}
	if err := m.SetSessionState(id, schema.StateIdle); err != nil {
		return false, err
	}
	log.Info("manager interrupt ok")
	return true, nil
}

// SetInputMode switches where commands for the session are delivered.
func (m *Manager) SetInputMode(id schema.SessionID, mode schema.InputMode) error {
	if !validInputMode(mode) {
		return fmt.Errorf("%w: %q", schema.ErrInvalidInputMode, mode)
	}
	m.mu.Lock()
	s := m.sessions[id]
	if s == nil {
		m.mu.Unlock()
		return schema.ErrSessionNotFound
	}
	s.data.InputMode = mode
	data := cloneSessionData(s.data)
	m.mu.Unlock()

	m.emitSession(schema.SessionEvent{Type: schema.SessionChanged, SessionID: id, Session: &data})
	return nil
}

// SelectTab makes tabID the active AI tab of the session.
func (m *Manager) SelectTab(id schema.SessionID, tabID schema.TabID) error {
	m.mu.Lock()
	s := m.sessions[id]
	if s == nil {
		m.mu.Unlock()
		return schema.ErrSessionNotFound
	}
	found := false
	for _, tab := range s.data.AITabs {
		if tab.ID == tabID {
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return schema.ErrTabNotFound
	}
	s.data.ActiveTabID = tabID
	data := cloneSessionData(s.data)
	m.mu.Unlock()

	m.emitSession(schema.SessionEvent{Type: schema.SessionTabs, SessionID: id, Session: &data})
	return nil
}

func (m *Manager) newEntry(source, text string, tabID schema.TabID) schema.LogEntry {
	return schema.LogEntry{
		ID:        newID(),
		Timestamp: m.now().UnixMilli(),
		Source:    source,
		Text:      text,
		TabID:     tabID,
	}
}

func (m *Manager) emitSession(event schema.SessionEvent) {
	if m.sink == nil {
		return
	}
	m.sink.OnSessionEvent(event)
}

func (m *Manager) emitOutput(event schema.OutputEvent) {
	if m.sink == nil {
		return
	}
	m.sink.OnOutput(event)
}

func (m *Manager) emitSettings(event schema.SettingsEvent) {
	if m.sink == nil {
		return
	}
	m.sink.OnSettingsEvent(event)
}

func validInputMode(mode schema.InputMode) bool {
	return mode == schema.InputModeAI || mode == schema.InputModeTerminal
}

func cloneSessionData(data schema.SessionData) schema.SessionData {
	if data.UsageStats != nil {
		usage := *data.UsageStats
		data.UsageStats = &usage
	}
	if data.LastResponse != nil {
		last := *data.LastResponse
		data.LastResponse = &last
	}
	if data.AITabs != nil {
		data.AITabs = append([]schema.AITab(nil), data.AITabs...)
	}
	return data
}
