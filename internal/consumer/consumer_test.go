package consumer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fa-sharp/rschat-relay/internal/eventlog"
	"github.com/fa-sharp/rschat-relay/internal/relayerr"
)

// scriptedLog replays a fixed sequence of ReadRange/Tail results, enough to
// drive Consumer without a live Redis instance.
type scriptedLog struct {
	readRangeEntries []eventlog.StoredEntry
	tailSequence     []tailStep
	tailCalls        int
}

type tailStep struct {
	entry *eventlog.StoredEntry
	err   error
}

func (s *scriptedLog) Create(ctx context.Context, key string, ttlSeconds int64) error { return nil }
func (s *scriptedLog) Exists(ctx context.Context, key string) (bool, error)           { return true, nil }
func (s *scriptedLog) Append(ctx context.Context, key string, entries []eventlog.Entry, ttlSeconds, maxLen int64) error {
	return nil
}
func (s *scriptedLog) AppendTerminal(ctx context.Context, key string, entry eventlog.Entry) error {
	return nil
}
func (s *scriptedLog) Delete(ctx context.Context, key string) error { return nil }

func (s *scriptedLog) ReadRange(ctx context.Context, key, fromID string) ([]eventlog.StoredEntry, error) {
	return s.readRangeEntries, nil
}

func (s *scriptedLog) Tail(ctx context.Context, key, fromID string, blockMs int64) (*eventlog.StoredEntry, error) {
	if s.tailCalls >= len(s.tailSequence) {
		return nil, nil
	}
	step := s.tailSequence[s.tailCalls]
	s.tailCalls++
	return step.entry, step.err
}

func (s *scriptedLog) ScanKeys(ctx context.Context, prefix string, limit int64) ([]string, error) {
	return nil, nil
}

func TestConsumer_ReadRange(t *testing.T) {
	log := &scriptedLog{readRangeEntries: []eventlog.StoredEntry{
		{ID: "1-0", Entry: eventlog.Entry{Type: eventlog.TypeStart}},
		{ID: "2-0", Entry: eventlog.Entry{Type: eventlog.TypeText, Data: "hi"}},
	}}
	c := New(log)
	frames, lastID, isEnd, err := c.ReadRange(context.Background(), "chat:u1:s1")
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "2-0", lastID)
	assert.False(t, isEnd)
	assert.Equal(t, "text", frames[1].Event)
	assert.Equal(t, "hi", frames[1].Data)
}

func TestConsumer_StreamStopsAtEnd(t *testing.T) {
	log := &scriptedLog{tailSequence: []tailStep{
		{entry: &eventlog.StoredEntry{ID: "3-0", Entry: eventlog.Entry{Type: eventlog.TypeText, Data: "more"}}},
		{entry: &eventlog.StoredEntry{ID: "4-0", Entry: eventlog.Entry{Type: eventlog.TypeEnd}}},
	}}
	c := New(log)
	out := make(chan Frame, 10)
	err := c.Stream(context.Background(), "chat:u1:s1", "2-0", out)
	require.NoError(t, err)
	close(out)

	var frames []Frame
	for f := range out {
		frames = append(frames, f)
	}
	require.Len(t, frames, 2)
	assert.Equal(t, "end", frames[1].Event)
}

func TestConsumer_StreamSendsSyntheticErrorOnLogMissing(t *testing.T) {
	log := &scriptedLog{tailSequence: []tailStep{
		{err: relayerr.Wrap(relayerr.LogMissing, "gone", nil)},
	}}
	c := New(log)
	out := make(chan Frame, 1)
	err := c.Stream(context.Background(), "chat:u1:s1", "0-0", out)
	require.NoError(t, err)
	close(out)

	frame := <-out
	assert.Equal(t, "error", frame.Event)
}

func TestConsumer_StreamReturnsOnClientDisconnect(t *testing.T) {
	log := &scriptedLog{tailSequence: []tailStep{
		{entry: &eventlog.StoredEntry{ID: "3-0", Entry: eventlog.Entry{Type: eventlog.TypeText, Data: "x"}}},
	}}
	c := New(log)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan Frame) // unbuffered, so the send blocks until ctx.Done fires
	err := c.Stream(ctx, "chat:u1:s1", "0-0", out)
	assert.ErrorIs(t, err, context.Canceled)
}
