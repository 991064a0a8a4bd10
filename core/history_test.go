package core

import (
	"testing"

	"pkt.systems/tether/schema"
)

func TestHistoryStoreDedupesAndBounds(t *testing.T) {
	h := newHistoryStore(3)
	if h.Append(schema.HistoryEntry{}) {
		t.Fatalf("entry without id accepted")
	}
	for _, id := range []string{"a", "a", "b", "c", "d"} {
		h.Append(schema.HistoryEntry{ID: id})
	}
	got := h.Entries()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].ID != "b" || got[2].ID != "d" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestHistoryStoreListFilters(t *testing.T) {
	h := newHistoryStore(0)
	h.Append(schema.HistoryEntry{ID: "1", ProjectPath: "/a", SessionID: "s1"})
	h.Append(schema.HistoryEntry{ID: "2", ProjectPath: "/b", SessionID: "s2"})
	h.Append(schema.HistoryEntry{ID: "3", ProjectPath: "/a", SessionID: "s2"})

	cases := []struct {
		name    string
		project string
		session schema.SessionID
		want    []string
	}{
		{name: "all", want: []string{"3", "2", "1"}},
		{name: "project", project: "/a", want: []string{"3", "1"}},
		{name: "session", session: "s2", want: []string{"3", "2"}},
		{name: "both", project: "/a", session: "s1", want: []string{"1"}},
		{name: "none", project: "/c", want: []string{}},
	}
	for _, tc := range cases {
		got := h.List(tc.project, tc.session)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %d entries, want %d", tc.name, len(got), len(tc.want))
		}
		for i, id := range tc.want {
			if got[i].ID != id {
				t.Fatalf("%s: entry %d = %s, want %s", tc.name, i, got[i].ID, id)
			}
		}
	}
}

func TestHistoryFromPersistedKeepsNewest(t *testing.T) {
	h := newHistoryFromPersisted([]schema.HistoryEntry{{ID: "1"}, {ID: "2"}, {ID: "3"}}, 2)
	got := h.List("", "")
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "2" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}
