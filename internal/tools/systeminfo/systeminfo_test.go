package systeminfo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fa-sharp/rschat-relay/internal/toolexec"
)

type capturingSink struct {
	events []toolexec.LogEvent
	closed chan struct{}
}

func newCapturingSink() *capturingSink {
	return &capturingSink{closed: make(chan struct{})}
}

func (s *capturingSink) Send(ctx context.Context, ev toolexec.LogEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *capturingSink) Closed() <-chan struct{} { return s.closed }

func TestSystemInfoTool(t *testing.T) {
	tool := New(time.Now().Add(-time.Minute))
	sink := newCapturingSink()
	isError, err := tool.ValidateAndExecute(context.Background(), nil, sink)
	require.NoError(t, err)
	assert.False(t, isError)
	require.Len(t, sink.events, 1)
	assert.Equal(t, toolexec.KindResult, sink.events[0].Kind)
}
