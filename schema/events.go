package schema

// Frame types pushed to WebSocket clients.
const (
	FrameConnected          = "connected"
	FrameSessionsList       = "sessions_list"
	FrameTheme              = "theme"
	FrameCustomCommands     = "custom_commands"
	FrameAutoRunState       = "autorun_state"
	FrameError              = "error"
	FramePong               = "pong"
	FrameSubscribed         = "subscribed"
	FrameCommandResult      = "command_result"
	FrameModeSwitchResult   = "mode_switch_result"
	FrameTabSelected        = "tab_selected"
	FrameInterruptResult    = "interrupt_result"
	FrameSessionStateChange = "session_state_change"
	FrameSessionAdded       = "session_added"
	FrameSessionRemoved     = "session_removed"
	FrameSessionLive        = "session_live"
	FrameSessionOffline     = "session_offline"
	FrameSessionOutput      = "session_output"
	FrameTabsChanged        = "tabs_changed"
)

// SessionEventType identifies a session lifecycle event.
type SessionEventType string

const (
	// SessionAdded is emitted when a session is created.
	SessionAdded SessionEventType = "added"
	// SessionRemoved is emitted when a session is deleted.
	SessionRemoved SessionEventType = "removed"
	// SessionChanged is emitted when state, mode, or metadata changes.
	SessionChanged SessionEventType = "changed"
	// SessionLiveChanged is emitted when remote access is toggled.
	SessionLiveChanged SessionEventType = "live"
	// SessionAutoRun is emitted when the auto-run state changes.
	SessionAutoRun SessionEventType = "autorun"
	// SessionTabs is emitted when tabs or the active tab change.
	SessionTabs SessionEventType = "tabs"
)

// SessionEvent carries a session change from the session manager.
type SessionEvent struct {
	Type      SessionEventType
	SessionID SessionID
	Session   *SessionData
	Live      *LiveSessionInfo
	AutoRun   *AutoRunState
}

// OutputEvent carries a new log line for a session.
type OutputEvent struct {
	SessionID SessionID
	Terminal  bool
	Entry     LogEntry
}

// SettingsEventType identifies a global settings change.
type SettingsEventType string

const (
	// SettingsTheme is emitted when the theme changes.
	SettingsTheme SettingsEventType = "theme"
	// SettingsCustomCommands is emitted when custom commands change.
	SettingsCustomCommands SettingsEventType = "custom_commands"
)

// SettingsEvent carries a theme or command list change.
type SettingsEvent struct {
	Type     SettingsEventType
	Theme    *Theme
	Commands []CustomAICommand
}
