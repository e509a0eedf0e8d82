package websearch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fa-sharp/rschat-relay/internal/toolexec"
)

type testSink struct {
	events []toolexec.LogEvent
	closed chan struct{}
}

func newTestSink() *testSink { return &testSink{closed: make(chan struct{})} }

func (s *testSink) Send(ctx context.Context, ev toolexec.LogEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *testSink) Closed() <-chan struct{} { return s.closed }

type fakeProvider struct {
	results []Result
	err     error
}

func (p *fakeProvider) Name() string { return "fake" }
func (p *fakeProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	return p.results, p.err
}

func TestTool_ValidateAndExecute(t *testing.T) {
	provider := &fakeProvider{results: []Result{{Title: "t", URL: "u", Snippet: "s"}}}
	tool := New(provider, nil)

	sink := newTestSink()
	params, _ := json.Marshal(map[string]any{"query": "golang", "max_results": 3})
	isError, err := tool.ValidateAndExecute(context.Background(), params, sink)
	require.NoError(t, err)
	assert.False(t, isError)
	require.NotEmpty(t, sink.events)
	assert.Equal(t, toolexec.KindResult, sink.events[len(sink.events)-1].Kind)
}

func TestTool_RejectsEmptyQuery(t *testing.T) {
	tool := New(&fakeProvider{}, nil)
	sink := newTestSink()
	params, _ := json.Marshal(map[string]any{"query": ""})
	isError, err := tool.ValidateAndExecute(context.Background(), params, sink)
	assert.True(t, isError)
	assert.Error(t, err)
}

func TestTool_PropagatesProviderError(t *testing.T) {
	tool := New(&fakeProvider{err: assert.AnError}, nil)
	sink := newTestSink()
	params, _ := json.Marshal(map[string]any{"query": "golang"})
	isError, err := tool.ValidateAndExecute(context.Background(), params, sink)
	assert.True(t, isError)
	assert.Error(t, err)
}
