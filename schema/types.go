package schema

// SessionID identifies an agent session owned by the session manager.
type SessionID string

// TabID identifies an AI tab inside a session.
type TabID string

// ClientID identifies a connected remote web client.
type ClientID string

// SessionState is the coarse run state of a session.
type SessionState string

const (
	// StateIdle means the session is ready for input.
	StateIdle SessionState = "idle"
	// StateBusy means the agent is working.
	StateBusy SessionState = "busy"
	// StateWaiting means the agent is waiting for user input.
	StateWaiting SessionState = "waiting_input"
	// StateConnecting means the agent process is starting.
	StateConnecting SessionState = "connecting"
	// StateError means the agent exited with an error.
	StateError SessionState = "error"
)

// InputMode selects where commands are delivered.
type InputMode string

const (
	// InputModeAI routes input to the AI agent.
	InputModeAI InputMode = "ai"
	// InputModeTerminal routes input to the shell.
	InputModeTerminal InputMode = "terminal"
)

// UsageStats carries token and cost counters for a session.
type UsageStats struct {
	InputTokens              int64   `json:"inputTokens" yaml:"input_tokens"`
	OutputTokens             int64   `json:"outputTokens" yaml:"output_tokens"`
	CacheReadInputTokens     int64   `json:"cacheReadInputTokens" yaml:"cache_read_input_tokens"`
	CacheCreationInputTokens int64   `json:"cacheCreationInputTokens" yaml:"cache_creation_input_tokens"`
	TotalCostUSD             float64 `json:"totalCostUsd" yaml:"total_cost_usd"`
	ContextWindow            int64   `json:"contextWindow" yaml:"context_window"`
}

// LastResponse is a preview of the latest agent reply.
type LastResponse struct {
	Text      string `json:"text" yaml:"text"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
	Source    string `json:"source" yaml:"source"`
}

// AITab describes a single AI conversation tab.
type AITab struct {
	ID             TabID        `json:"id" yaml:"id"`
	AgentSessionID string       `json:"agentSessionId,omitempty" yaml:"agent_session_id"`
	Name           string       `json:"name,omitempty" yaml:"name"`
	Starred        bool         `json:"starred,omitempty" yaml:"starred"`
	State          SessionState `json:"state,omitempty" yaml:"state"`
	CreatedAt      int64        `json:"createdAt" yaml:"created_at"`
}

// SessionData is the summary view of a session.
type SessionData struct {
	ID             SessionID     `json:"id" yaml:"id"`
	Name           string        `json:"name" yaml:"name"`
	ToolType       string        `json:"toolType" yaml:"tool_type"`
	State          SessionState  `json:"state" yaml:"state"`
	InputMode      InputMode     `json:"inputMode" yaml:"input_mode"`
	Cwd            string        `json:"cwd" yaml:"cwd"`
	GroupID        string        `json:"groupId,omitempty" yaml:"group_id"`
	GroupName      string        `json:"groupName,omitempty" yaml:"group_name"`
	GroupEmoji     string        `json:"groupEmoji,omitempty" yaml:"group_emoji"`
	UsageStats     *UsageStats   `json:"usageStats,omitempty" yaml:"usage_stats"`
	LastResponse   *LastResponse `json:"lastResponse,omitempty" yaml:"last_response"`
	AgentSessionID string        `json:"agentSessionId,omitempty" yaml:"agent_session_id"`
	AITabs         []AITab       `json:"aiTabs,omitempty" yaml:"ai_tabs"`
	ActiveTabID    TabID         `json:"activeTabId,omitempty" yaml:"active_tab_id"`
	Bookmarked     bool          `json:"bookmarked,omitempty" yaml:"bookmarked"`
}

// LogEntry is one line of AI or shell output.
type LogEntry struct {
	ID        string `json:"id" yaml:"id"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
	Source    string `json:"source" yaml:"source"`
	Text      string `json:"text" yaml:"text"`
	TabID     TabID  `json:"tabId,omitempty" yaml:"tab_id"`
}

// Log sources.
const (
	SourceStdout = "stdout"
	SourceStderr = "stderr"
	SourceUser   = "user"
	SourceSystem = "system"
)

// SessionDetail is a session with its logs.
type SessionDetail struct {
	SessionData
	AILogs    []LogEntry `json:"aiLogs"`
	ShellLogs []LogEntry `json:"shellLogs"`
}

// LiveInfo holds the remote-facing enrichment fields.
type LiveInfo struct {
	LiveEnabledAt *int64 `json:"liveEnabledAt,omitempty"`
	IsLive        bool   `json:"isLive"`
}

// EnrichedSession is a session summary annotated with live state.
type EnrichedSession struct {
	SessionData
	LiveInfo
}

// EnrichedSessionDetail is a session detail annotated with live state.
type EnrichedSessionDetail struct {
	SessionDetail
	LiveInfo
}

// LiveSessionInfo records when a session was opened for remote access.
type LiveSessionInfo struct {
	SessionID      SessionID `json:"sessionId" yaml:"session_id"`
	AgentSessionID string    `json:"agentSessionId,omitempty" yaml:"agent_session_id"`
	EnabledAt      int64     `json:"enabledAt" yaml:"enabled_at"`
}

// EnrichLive returns the agent session id to report and the live fields for a
// session. A live record overrides agentSessionID when it carries one; isLive
// is reported as given.
func EnrichLive(agentSessionID string, live *LiveSessionInfo, isLive bool) (string, LiveInfo) {
	info := LiveInfo{IsLive: isLive}
	if live != nil {
		if live.AgentSessionID != "" {
			agentSessionID = live.AgentSessionID
		}
		enabledAt := live.EnabledAt
		info.LiveEnabledAt = &enabledAt
	}
	return agentSessionID, info
}

// AutoRunState tracks a batch task run for a session.
type AutoRunState struct {
	IsRunning        bool   `json:"isRunning" yaml:"is_running"`
	TotalTasks       int    `json:"totalTasks" yaml:"total_tasks"`
	CompletedTasks   int    `json:"completedTasks" yaml:"completed_tasks"`
	CurrentTaskIndex int    `json:"currentTaskIndex" yaml:"current_task_index"`
	Error            string `json:"error,omitempty" yaml:"error"`
	StartedAt        int64  `json:"startedAt,omitempty" yaml:"started_at"`
}

// CustomAICommand is a user-defined slash command.
type CustomAICommand struct {
	ID          string `json:"id" yaml:"id"`
	Command     string `json:"command" yaml:"command"`
	Description string `json:"description" yaml:"description"`
	Prompt      string `json:"prompt" yaml:"prompt"`
	IsBuiltIn   bool   `json:"isBuiltIn,omitempty" yaml:"is_built_in"`
}

// HistoryEntryType distinguishes user prompts from automated runs.
type HistoryEntryType string

const (
	// HistoryUser is an interactive prompt.
	HistoryUser HistoryEntryType = "USER"
	// HistoryAuto is an auto-run task.
	HistoryAuto HistoryEntryType = "AUTO"
)

// HistoryEntry is one completed agent interaction.
type HistoryEntry struct {
	ID             string           `json:"id" yaml:"id"`
	Type           HistoryEntryType `json:"type" yaml:"type"`
	Timestamp      int64            `json:"timestamp" yaml:"timestamp"`
	Summary        string           `json:"summary" yaml:"summary"`
	FullResponse   string           `json:"fullResponse,omitempty" yaml:"full_response"`
	AgentSessionID string           `json:"agentSessionId,omitempty" yaml:"agent_session_id"`
	ProjectPath    string           `json:"projectPath" yaml:"project_path"`
	SessionID      SessionID        `json:"sessionId,omitempty" yaml:"session_id"`
	SessionName    string           `json:"sessionName,omitempty" yaml:"session_name"`
	Success        *bool            `json:"success,omitempty" yaml:"success"`
	ElapsedTimeMs  int64            `json:"elapsedTimeMs,omitempty" yaml:"elapsed_time_ms"`
	UsageStats     *UsageStats      `json:"usageStats,omitempty" yaml:"usage_stats"`
}

// ClientMessage is an inbound WebSocket message. Only the envelope is known here.
type ClientMessage map[string]any

// Type returns the message type field.
func (m ClientMessage) Type() string {
	return m.String("type")
}

// String returns a string field or "" when missing or not a string.
func (m ClientMessage) String(key string) string {
	if m == nil {
		return ""
	}
	value, _ := m[key].(string)
	return value
}
