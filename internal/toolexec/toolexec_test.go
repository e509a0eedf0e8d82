package toolexec

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fa-sharp/rschat-relay/internal/relayerr"
	"github.com/fa-sharp/rschat-relay/internal/session"
)

type fakeStore struct {
	mu       sync.Mutex
	appended []session.Message
}

func (f *fakeStore) CreateSession(ctx context.Context, s session.Session) (session.Session, error) {
	return s, nil
}
func (f *fakeStore) GetSession(ctx context.Context, userID, sessionID string) (session.Session, error) {
	return session.Session{}, nil
}
func (f *fakeStore) ListSessions(ctx context.Context, userID string) ([]session.Session, error) {
	return nil, nil
}
func (f *fakeStore) DeleteSession(ctx context.Context, userID, sessionID string) error { return nil }
func (f *fakeStore) UpdateSessionTitle(ctx context.Context, userID, sessionID, title string) error {
	return nil
}
func (f *fakeStore) AppendMessage(ctx context.Context, m session.Message) (session.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, m)
	return m, nil
}
func (f *fakeStore) GetMessage(ctx context.Context, sessionID, messageID string) (session.Message, error) {
	return session.Message{}, nil
}
func (f *fakeStore) ListMessages(ctx context.Context, sessionID string) ([]session.Message, error) {
	return nil, nil
}

type scriptedTool struct {
	events  []LogEvent
	isError bool
	err     error
}

func (t *scriptedTool) ValidateAndExecute(ctx context.Context, params json.RawMessage, sink Sink) (bool, error) {
	for _, ev := range t.events {
		if sendErr := sink.Send(ctx, ev); sendErr != nil {
			return true, sendErr
		}
	}
	return t.isError, t.err
}

func TestExecutor_ExecuteAndPersist(t *testing.T) {
	store := &fakeStore{}
	exec := New(store)
	tool := &scriptedTool{events: []LogEvent{
		{Kind: KindLog, Text: "starting"},
		{Kind: KindResult, Text: "42"},
	}}
	callRef := session.ToolCallRef{CallID: "c1", ToolID: "calc", ToolName: "calculator"}
	out := BoundedChannel()
	closed := make(chan struct{})

	var received []LogEvent
	done := make(chan struct{})
	go func() {
		for ev := range out {
			received = append(received, ev)
		}
		close(done)
	}()

	msg, err := exec.ExecuteAndPersist(context.Background(), "sess-1", callRef, tool, out, closed)
	close(out)
	<-done

	require.NoError(t, err)
	assert.Equal(t, session.RoleTool, msg.Role)
	assert.Equal(t, "starting\n42", msg.Content)
	require.NotNil(t, msg.Meta.ExecutedCall)
	assert.False(t, msg.Meta.ExecutedCall.IsError)
	assert.Len(t, received, 2)
	require.Len(t, store.appended, 1)
}

func TestExecutor_CancelledWhenPrimaryClosedSignalFires(t *testing.T) {
	store := &fakeStore{}
	exec := New(store)
	closed := make(chan struct{})
	close(closed) // simulate client already disconnected

	tool := &scriptedTool{events: []LogEvent{{Kind: KindLog, Text: "won't make it"}}}
	callRef := session.ToolCallRef{CallID: "c1", ToolID: "calc"}
	out := make(chan LogEvent) // unbuffered with no reader: send always blocks, so the closed case always wins

	msg, err := exec.ExecuteAndPersist(context.Background(), "sess-1", callRef, tool, out, closed)
	require.NoError(t, err) // ExecuteAndPersist itself never errors; it persists the cancellation
	require.NotNil(t, msg.Meta.ExecutedCall)
	assert.True(t, msg.Meta.ExecutedCall.IsError)
}

func TestResolvePendingCall(t *testing.T) {
	msg := session.Message{
		ID: "m1",
		Meta: session.MessageMeta{ToolCalls: []session.ToolCallRef{
			{CallID: "c1", ToolID: "calc"},
		}},
	}
	_, err := ResolvePendingCall(msg, "missing")
	assert.ErrorIs(t, err, relayerr.ToolCallNotFound)

	found, err := ResolvePendingCall(msg, "c1")
	require.NoError(t, err)
	assert.Equal(t, "calc", found.ToolID)
}
