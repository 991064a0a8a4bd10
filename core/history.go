package core

import (
	"strings"

	"pkt.systems/tether/schema"
)

const defaultHistoryMax = 5000

// historyStore keeps completed interactions, oldest first.
type historyStore struct {
	entries []schema.HistoryEntry
	max     int
}

func newHistoryStore(max int) *historyStore {
	if max <= 0 {
		max = defaultHistoryMax
	}
	return &historyStore{max: max}
}

func newHistoryFromPersisted(entries []schema.HistoryEntry, max int) *historyStore {
	h := newHistoryStore(max)
	for _, entry := range entries {
		h.Append(entry)
	}
	return h
}

// Append stores entry unless it has no ID or repeats the previous ID.
func (h *historyStore) Append(entry schema.HistoryEntry) bool {
	if h == nil {
		return false
	}
	if strings.TrimSpace(entry.ID) == "" {
		return false
	}
	if len(h.entries) > 0 && h.entries[len(h.entries)-1].ID == entry.ID {
		return false
	}
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.max {
		h.entries = append([]schema.HistoryEntry(nil), h.entries[len(h.entries)-h.max:]...)
	}
	return true
}

// List returns matching entries, newest first. Empty filters match everything.
func (h *historyStore) List(projectPath string, sessionID schema.SessionID) []schema.HistoryEntry {
	out := []schema.HistoryEntry{}
	if h == nil {
		return out
	}
	for i := len(h.entries) - 1; i >= 0; i-- {
		entry := h.entries[i]
		if projectPath != "" && entry.ProjectPath != projectPath {
			continue
		}
		if sessionID != "" && entry.SessionID != sessionID {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// Entries returns a copy, oldest first.
func (h *historyStore) Entries() []schema.HistoryEntry {
	if h == nil {
		return nil
	}
	return append([]schema.HistoryEntry(nil), h.entries...)
}
