package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"pkt.systems/pslog"
	"pkt.systems/tether/schema"
)

const stateFileName = "state.json"

// SessionRecord captures one session with its logs for persistence.
type SessionRecord struct {
	schema.SessionData `yaml:",inline"`
	AILogs             map[schema.TabID][]schema.LogEntry `json:"aiLogs,omitempty" yaml:"ai_logs"`
	ShellLogs          []schema.LogEntry                  `json:"shellLogs,omitempty" yaml:"shell_logs"`
	Live               *schema.LiveSessionInfo            `json:"live,omitempty" yaml:"live"`
	AutoRun            *schema.AutoRunState               `json:"autoRun,omitempty" yaml:"auto_run"`
}

// State is the session manager snapshot. The same shape is used for the YAML seed file.
type State struct {
	Sessions       []SessionRecord          `json:"sessions" yaml:"sessions"`
	Theme          *schema.Theme            `json:"theme,omitempty" yaml:"theme"`
	CustomCommands []schema.CustomAICommand `json:"customCommands,omitempty" yaml:"custom_commands"`
	History        []schema.HistoryEntry    `json:"history,omitempty" yaml:"history"`
}

// Store persists manager snapshots to disk.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, stateFileName)
}

// Load reads the snapshot. The bool is false when no snapshot exists yet.
func (s *Store) Load() (State, bool, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss")
			}
			return State{}, false, nil
		}
		if s.log != nil {
			s.log.Warn("state load failed", "err", err)
		}
		return State{}, false, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		if s.log != nil {
			s.log.Warn("state load failed", "err", err)
		}
		return State{}, false, fmt.Errorf("decode %s: %w", s.Path(), err)
	}
	if s.log != nil {
		s.log.Debug("state load ok", "sessions", len(state.Sessions), "history", len(state.History))
	}
	return state, true, nil
}

// Save writes the snapshot atomically.
func (s *Store) Save(state State) error {
	path := s.Path()
	fail := func(err error) error {
		if s.log != nil {
			s.log.Warn("state save failed", "err", err)
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fail(err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fail(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return fail(err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail(err)
	}
	if s.log != nil {
		s.log.Trace("state save ok", "sessions", len(state.Sessions))
	}
	return nil
}

// LoadSeed reads an initial state from a YAML file.
func LoadSeed(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode seed %s: %w", path, err)
	}
	for i, record := range state.Sessions {
		if strings.TrimSpace(string(record.ID)) == "" {
			return State{}, fmt.Errorf("seed %s: session %d has no id", path, i)
		}
	}
	return state, nil
}
