// Package consumer implements the stream consumer (SseStreamReader): it
// replays a log's history then tails new entries, translating each into an
// SSE frame and resuming cleanly from a client-supplied Last-Event-ID.
package consumer

import (
	"context"
	"errors"

	"github.com/fa-sharp/rschat-relay/internal/eventlog"
	"github.com/fa-sharp/rschat-relay/internal/relayerr"
)

// BlockTimeoutMs is the duration of each blocking tail read.
const BlockTimeoutMs int64 = 10_000

// Frame is one translated SSE frame: event: Event / id: ID / data: Data.
type Frame struct {
	ID    string
	Event string
	Data  string
}

// Consumer reads a session's event log and republishes it as SSE frames.
type Consumer struct {
	log eventlog.Log
}

// New constructs a Consumer over log.
func New(log eventlog.Log) *Consumer {
	return &Consumer{log: log}
}

// ReadRange returns every entry stored at key as SSE frames, along with the
// ID of the last one (for resumption) and whether that last entry was the
// terminal "end" event. Mirrors SseStreamReader::get_prev_events.
func (c *Consumer) ReadRange(ctx context.Context, key string) (frames []Frame, lastID string, isEnd bool, err error) {
	entries, err := c.log.ReadRange(ctx, key, "0-0")
	if err != nil {
		return nil, "", false, err
	}
	if len(entries) == 0 {
		return nil, "0-0", false, nil
	}
	frames = make([]Frame, len(entries))
	for i, e := range entries {
		frames[i] = toFrame(e)
	}
	last := entries[len(entries)-1]
	return frames, last.ID, last.Type == eventlog.TypeEnd, nil
}

// Stream blocks, repeatedly tailing key starting after lastEventID, sending
// each translated frame to out. It returns when:
//   - the terminal "end" entry is observed (returns nil, after sending it)
//   - the log disappears mid-read (sends a synthetic error frame, returns nil)
//   - ctx is cancelled, e.g. the client disconnected (returns ctx.Err())
//
// Stream never closes out; the caller owns that channel's lifecycle.
func (c *Consumer) Stream(ctx context.Context, key, lastEventID string, out chan<- Frame) error {
	cursor := lastEventID
	for {
		entry, err := c.log.Tail(ctx, key, cursor, BlockTimeoutMs)
		if err != nil {
			if errors.Is(err, relayerr.LogMissing) {
				select {
				case out <- errorFrame(err):
				case <-ctx.Done():
				}
				return nil
			}
			return err
		}
		if entry == nil {
			// A live stream is pinged every producer.PingInterval, well inside
			// BlockTimeoutMs, so a block that returns nothing means the key is
			// gone (cancelled and deleted, or expired), not a quiet producer.
			// Mirrors the original get_next_event's treatment of a nil read.
			select {
			case out <- errorFrame(relayerr.New(relayerr.LogMissing, "stream ended")):
			case <-ctx.Done():
			}
			return nil
		}
		cursor = entry.ID
		frame := toFrame(*entry)
		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
		if entry.Type == eventlog.TypeEnd {
			return nil
		}
	}
}

func toFrame(e eventlog.StoredEntry) Frame {
	return Frame{ID: e.ID, Event: string(e.Type), Data: e.Data}
}

func errorFrame(err error) Frame {
	return Frame{Event: string(eventlog.TypeError), Data: "stream ended: " + err.Error()}
}
