package producer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fa-sharp/rschat-relay/internal/chatmodel"
	"github.com/fa-sharp/rschat-relay/internal/eventlog"
	"github.com/fa-sharp/rschat-relay/internal/relayerr"
)

// fakeLog is an in-memory eventlog.Log for unit tests, avoiding a live Redis
// dependency.
type fakeLog struct {
	mu      sync.Mutex
	entries map[string][]eventlog.StoredEntry
	deleted map[string]bool
	seq     int
}

func newFakeLog() *fakeLog {
	return &fakeLog{entries: map[string][]eventlog.StoredEntry{}, deleted: map[string]bool{}}
}

func (f *fakeLog) nextID() string {
	f.seq++
	return "id-" + string(rune('a'+f.seq))
}

func (f *fakeLog) Create(ctx context.Context, key string, ttlSeconds int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[key]; ok {
		return eventlog.ErrAlreadyExists
	}
	f.entries[key] = []eventlog.StoredEntry{{ID: f.nextID(), Entry: eventlog.Entry{Type: eventlog.TypeStart}}}
	return nil
}

func (f *fakeLog) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[key]
	return ok, nil
}

func (f *fakeLog) Append(ctx context.Context, key string, entries []eventlog.Entry, ttlSeconds, maxLen int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[key]; !ok {
		return relayerr.Wrap(relayerr.LogMissing, "log missing", nil)
	}
	for _, e := range entries {
		f.entries[key] = append(f.entries[key], eventlog.StoredEntry{ID: f.nextID(), Entry: e})
	}
	return nil
}

func (f *fakeLog) AppendTerminal(ctx context.Context, key string, entry eventlog.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[key]; !ok {
		return relayerr.Wrap(relayerr.LogMissing, "log missing", nil)
	}
	f.entries[key] = append(f.entries[key], eventlog.StoredEntry{ID: f.nextID(), Entry: entry})
	delete(f.entries, key)
	f.deleted[key] = true
	return nil
}

func (f *fakeLog) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *fakeLog) ReadRange(ctx context.Context, key, fromID string) ([]eventlog.StoredEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]eventlog.StoredEntry(nil), f.entries[key]...), nil
}

func (f *fakeLog) Tail(ctx context.Context, key, fromID string, blockMs int64) (*eventlog.StoredEntry, error) {
	return nil, nil
}

func (f *fakeLog) ScanKeys(ctx context.Context, prefix string, limit int64) ([]string, error) {
	return nil, nil
}

// fakeStream yields a fixed slice of chunks then ends.
type fakeStream struct {
	chunks []chatmodel.Chunk
	idx    int
	closed bool
}

func (s *fakeStream) Next(ctx context.Context) (chatmodel.Chunk, bool, error) {
	if s.idx >= len(s.chunks) {
		return chatmodel.Chunk{}, false, nil
	}
	c := s.chunks[s.idx]
	s.idx++
	return c, true, nil
}

func (s *fakeStream) Close() error { s.closed = true; return nil }

func TestProducer_RunAccumulatesAndFlushes(t *testing.T) {
	log := newFakeLog()
	p := New(log, "chat:u1:s1", nil, nil)
	ctx := context.Background()
	require.NoError(t, p.Start(ctx))

	stream := &fakeStream{chunks: []chatmodel.Chunk{
		{Type: chatmodel.ChunkText, Text: "hello "},
		{Type: chatmodel.ChunkText, Text: "world"},
		{Type: chatmodel.ChunkUsage, Usage: chatmodel.Usage{InputTokens: intPtr(10)}},
	}}
	result := p.Run(ctx, stream)

	assert.True(t, stream.closed)
	assert.False(t, result.Cancelled)
	assert.Equal(t, "hello world", result.Text)
	require.NotNil(t, result.Usage.InputTokens)
	assert.Equal(t, 10, *result.Usage.InputTokens)
	assert.Equal(t, StateFinalizing, p.State())

	stored, err := log.ReadRange(ctx, "chat:u1:s1", "0-0")
	require.NoError(t, err)
	var logged string
	for _, e := range stored {
		if e.Type == eventlog.TypeText {
			logged += e.Data
		}
	}
	assert.Equal(t, "hello world", logged)

	require.NoError(t, p.End(ctx))
	assert.Equal(t, StateDone, p.State())
}

func TestProducer_StartTwiceFails(t *testing.T) {
	log := newFakeLog()
	ctx := context.Background()
	p1 := New(log, "chat:u1:s1", nil, nil)
	require.NoError(t, p1.Start(ctx))

	p2 := New(log, "chat:u1:s1", nil, nil)
	err := p2.Start(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, relayerr.AlreadyStreaming)
}

func TestProducer_CancelDuringRunStopsProducer(t *testing.T) {
	log := newFakeLog()
	ctx := context.Background()
	p := New(log, "chat:u1:s1", nil, nil)
	require.NoError(t, p.Start(ctx))

	require.NoError(t, Cancel(ctx, log, "chat:u1:s1"))

	stream := &fakeStream{chunks: []chatmodel.Chunk{
		{Type: chatmodel.ChunkText, Text: "won't be delivered"},
	}}
	result := p.Run(ctx, stream)
	assert.True(t, result.Cancelled)
	assert.Equal(t, StateCancelled, p.State())
}

func TestBuildAssistantMessage(t *testing.T) {
	result := Result{
		Text:      "hi",
		Cancelled: true,
		ToolCalls: []chatmodel.ToolCall{{CallID: "c1", ToolID: "t1", ToolName: "search"}},
	}
	msg := BuildAssistantMessage(result, "sess-1", "anthropic", "claude-3")
	assert.Equal(t, "sess-1", msg.SessionID)
	assert.True(t, msg.Meta.Interrupted)
	require.Len(t, msg.Meta.ToolCalls, 1)
	assert.Equal(t, "search", msg.Meta.ToolCalls[0].ToolName)
}

func intPtr(v int) *int { return &v }
