package persist

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"pkt.systems/tether/schema"
)

func TestStoreLoadMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, ok, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected missing snapshot")
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	theme := schema.DefaultTheme()
	ok := true
	state := State{
		Sessions: []SessionRecord{
			{
				SessionData: schema.SessionData{
					ID:          "s1",
					Name:        "api",
					State:       schema.StateIdle,
					InputMode:   schema.InputModeAI,
					AITabs:      []schema.AITab{{ID: "t1", Name: "main"}},
					ActiveTabID: "t1",
				},
				AILogs:    map[schema.TabID][]schema.LogEntry{"t1": {{ID: "l1", Source: schema.SourceUser, Text: "hi", TabID: "t1"}}},
				ShellLogs: []schema.LogEntry{{ID: "l2", Source: schema.SourceStdout, Text: "$ ls"}},
				Live:      &schema.LiveSessionInfo{SessionID: "s1", EnabledAt: 42},
				AutoRun:   &schema.AutoRunState{IsRunning: true, TotalTasks: 2},
			},
		},
		Theme:          &theme,
		CustomCommands: []schema.CustomAICommand{{ID: "c1", Command: "/commit", Prompt: "Commit"}},
		History:        []schema.HistoryEntry{{ID: "h1", Type: schema.HistoryUser, Summary: "did it", Success: &ok}},
	}
	if err := store.Save(state); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, found, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatalf("expected snapshot")
	}
	if !reflect.DeepEqual(got, state) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, state)
	}
	info, err := os.Stat(filepath.Join(dir, stateFileName))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "state-*.json"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := store.Load(); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNewStoreRequiresDir(t *testing.T) {
	if _, err := NewStore("  "); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	seed := `sessions:
  - id: s1
    name: api
    tool_type: claude-code
    state: idle
    input_mode: ai
    cwd: /src/api
    ai_tabs:
      - id: t1
        name: main
    active_tab_id: t1
    live:
      session_id: s1
      enabled_at: 1700000000000
  - id: s2
    name: web
    state: busy
    auto_run:
      is_running: true
      total_tasks: 5
      completed_tasks: 2
custom_commands:
  - id: c1
    command: /review
    prompt: Review the diff
history:
  - id: h1
    type: USER
    summary: bootstrapped
    project_path: /src/api
    session_id: s1
`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	state, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if len(state.Sessions) != 2 {
		t.Fatalf("sessions = %d", len(state.Sessions))
	}
	first := state.Sessions[0]
	if first.ID != "s1" || first.Cwd != "/src/api" || first.ActiveTabID != "t1" || len(first.AITabs) != 1 {
		t.Fatalf("first session = %+v", first.SessionData)
	}
	if first.Live == nil || first.Live.EnabledAt != 1700000000000 {
		t.Fatalf("live = %+v", first.Live)
	}
	if run := state.Sessions[1].AutoRun; run == nil || !run.IsRunning || run.TotalTasks != 5 {
		t.Fatalf("auto run = %+v", run)
	}
	if len(state.CustomCommands) != 1 || state.CustomCommands[0].Command != "/review" {
		t.Fatalf("commands = %+v", state.CustomCommands)
	}
	if len(state.History) != 1 || state.History[0].ProjectPath != "/src/api" {
		t.Fatalf("history = %+v", state.History)
	}
}

func TestLoadSeedRejectsMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte("sessions:\n  - name: nameless\n"), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := LoadSeed(path); err == nil {
		t.Fatalf("expected error for session without id")
	}
}
