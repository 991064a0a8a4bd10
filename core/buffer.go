package core

import "pkt.systems/tether/schema"

const defaultLogMaxLines = 2000

// logBuffer stores the most recent log entries of one AI tab or shell.
type logBuffer struct {
	entries  []schema.LogEntry
	maxLines int
}

func newLogBuffer(maxLines int) *logBuffer {
	if maxLines <= 0 {
		maxLines = defaultLogMaxLines
	}
	return &logBuffer{maxLines: maxLines}
}

// newLogBufferFromPersisted keeps the newest entries that fit.
func newLogBufferFromPersisted(entries []schema.LogEntry, maxLines int) *logBuffer {
	b := newLogBuffer(maxLines)
	if len(entries) > b.maxLines {
		entries = entries[len(entries)-b.maxLines:]
	}
	b.entries = append([]schema.LogEntry(nil), entries...)
	return b
}

// Append adds entries and drops the oldest beyond the limit.
func (b *logBuffer) Append(entries ...schema.LogEntry) {
	if len(entries) == 0 {
		return
	}
	b.entries = append(b.entries, entries...)
	if len(b.entries) > b.maxLines {
		trim := len(b.entries) - b.maxLines
		b.entries = append([]schema.LogEntry(nil), b.entries[trim:]...)
	}
}

// Entries returns a copy, oldest first. A nil buffer yields an empty slice.
func (b *logBuffer) Entries() []schema.LogEntry {
	if b == nil {
		return []schema.LogEntry{}
	}
	return append([]schema.LogEntry{}, b.entries...)
}

func (b *logBuffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}
