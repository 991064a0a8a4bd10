package core

import (
	"strconv"
	"testing"

	"pkt.systems/tether/schema"
)

func entries(texts ...string) []schema.LogEntry {
	out := make([]schema.LogEntry, 0, len(texts))
	for i, text := range texts {
		out = append(out, schema.LogEntry{ID: strconv.Itoa(i), Text: text})
	}
	return out
}

func TestLogBufferRespectsMaxLines(t *testing.T) {
	b := newLogBuffer(3)
	b.Append(entries("one", "two", "three", "four", "five")...)
	got := b.Entries()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Text != "three" || got[2].Text != "five" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestLogBufferEntriesIsCopy(t *testing.T) {
	b := newLogBuffer(10)
	b.Append(entries("one")...)
	got := b.Entries()
	got[0].Text = "changed"
	if b.Entries()[0].Text != "one" {
		t.Fatalf("Entries exposed internal storage")
	}
}

func TestLogBufferNilIsEmpty(t *testing.T) {
	var b *logBuffer
	if got := b.Entries(); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if b.Len() != 0 {
		t.Fatalf("expected zero length")
	}
}

func TestLogBufferFromPersistedTrims(t *testing.T) {
	b := newLogBufferFromPersisted(entries("a", "b", "c", "d"), 2)
	got := b.Entries()
	if len(got) != 2 || got[0].Text != "c" || got[1].Text != "d" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestLogBufferDefaultLimit(t *testing.T) {
	if b := newLogBuffer(0); b.maxLines != defaultLogMaxLines {
		t.Fatalf("maxLines = %d, want %d", b.maxLines, defaultLogMaxLines)
	}
}
