// Package eventlog provides the append-only, keyed, bounded, TTL'd event log
// with blocking tail reads and single-writer exclusion that the stream
// producer and consumer coordinate through. The interface is substrate
// agnostic; RedisLog backs it with Redis streams.
package eventlog

import (
	"context"
	"errors"
)

// EntryType enumerates the log-entry type vocabulary of chat streams. Tool
// executions do not use the Log: they stream over an in-process channel with
// their own event kinds (see internal/toolexec).
type EntryType string

const (
	TypeStart    EntryType = "start"
	TypePing     EntryType = "ping"
	TypeText     EntryType = "text"
	TypeToolCall EntryType = "tool_call"
	TypeError    EntryType = "error"
	TypeCancel   EntryType = "cancel"
	TypeEnd      EntryType = "end"
)

// Entry is one log-entry payload before it receives an ID from the
// substrate. Data is empty for start/ping/cancel/end, utf-8 text for
// text/error, and compact JSON for tool_call.
type Entry struct {
	Type EntryType
	Data string
}

// StoredEntry is an Entry as returned by read_range/tail, carrying the
// substrate-assigned monotonic ID used as a resumption cursor.
type StoredEntry struct {
	ID string
	Entry
}

// ErrAlreadyExists is returned by Create when the key already has a log.
var ErrAlreadyExists = errors.New("eventlog: key already exists")

// Log is the EventLog contract (§4.1). All operations accept a context for
// cancellation/deadline propagation; none block the calling goroutine's
// underlying OS thread.
type Log interface {
	// Create atomically creates the log at key and appends a start entry,
	// setting the initial TTL. Returns ErrAlreadyExists if the key already
	// has entries.
	Create(ctx context.Context, key string, ttlSeconds int64) error

	// Exists reports whether key currently has at least one entry.
	Exists(ctx context.Context, key string) (bool, error)

	// Append writes one or more entries to key, refreshing its TTL and
	// trimming to approximately maxLen entries. Returns relayerr-wrapped
	// LogMissing if key was deleted.
	Append(ctx context.Context, key string, entries []Entry, ttlSeconds int64, maxLen int64) error

	// AppendTerminal atomically appends entry then deletes key, so the
	// terminal entry is never observable after the key disappears from a
	// racing reader's perspective that checks existence first.
	AppendTerminal(ctx context.Context, key string, entry Entry) error

	// Delete removes the log at key unconditionally.
	Delete(ctx context.Context, key string) error

	// ReadRange returns all entries at key with ID greater than fromID
	// ("0-0" for all). Returns relayerr-wrapped LogMissing if fromID=="0-0"
	// and the key has no entries.
	ReadRange(ctx context.Context, key, fromID string) ([]StoredEntry, error)

	// Tail blocks until an entry with ID greater than fromID is appended, or
	// blockMs elapses, returning (nil, nil) on timeout. A key that does not
	// exist also yields (nil, nil) once blockMs elapses; Tail does not report
	// LogMissing, and its errors come from the substrate itself.
	Tail(ctx context.Context, key, fromID string, blockMs int64) (*StoredEntry, error)

	// ScanKeys returns up to limit keys matching prefix+"*". Approximate and
	// non-atomic; used only to list ongoing sessions.
	ScanKeys(ctx context.Context, prefix string, limit int64) ([]string, error)
}
