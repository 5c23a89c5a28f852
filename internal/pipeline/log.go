package pipeline

import (
	"strings"
	"time"
)

// Tag separates automated findings from human choices.
type Tag string

const (
	TagSystem Tag = "system"
	TagUser   Tag = "user"
)

// Entry is one line of the audit trail.
type Entry struct {
	Tag     Tag       `json:"tag"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Line renders the entry the way it appears in the exported log.
func (e Entry) Line() string {
	if e.Tag == TagUser {
		return "USER ACTION: " + e.Message
	}
	return "SYSTEM NOTE: " + e.Message
}

// Log is an append-only, ordered action log.
type Log struct {
	entries []Entry
	now     func() time.Time
}

// NewLog returns an empty log stamped with the wall clock.
func NewLog() *Log { return &Log{now: time.Now} }

func (l *Log) add(tag Tag, msg string) {
	l.entries = append(l.entries, Entry{Tag: tag, Message: msg, At: l.now()})
}

// System records an automated finding.
func (l *Log) System(msg string) { l.add(TagSystem, msg) }

// User records a human choice.
func (l *Log) User(msg string) { l.add(TagUser, msg) }

// Reset clears the log; only a fresh upload does this.
func (l *Log) Reset() { l.entries = nil }

// Len returns the number of entries.
func (l *Log) Len() int { return len(l.entries) }

// Entries returns a copy of the entries in order.
func (l *Log) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Lines renders every entry with its tag prefix.
func (l *Log) Lines() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Line()
	}
	return out
}

// Text joins the lines with newlines, as written to the export log file.
func (l *Log) Text() string { return strings.Join(l.Lines(), "\n") }
