// Package toolexec implements the ToolExecutor: it runs a single tool call,
// streaming its incremental output to the requester through a dual-sink
// channel while collecting the same output into the final persisted
// tool-role message.
package toolexec

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fa-sharp/rschat-relay/internal/relayerr"
	"github.com/fa-sharp/rschat-relay/internal/session"
)

// LogKind discriminates the tagged variants a Tool may emit.
type LogKind string

const (
	KindResult LogKind = "result"
	KindLog    LogKind = "log"
	KindDebug  LogKind = "debug"
	KindError  LogKind = "error"
)

// LogEvent is one incremental message a Tool pushes through its Sink.
type LogEvent struct {
	Kind LogKind
	Text string
}

// Sink is handed to a Tool so it can stream incremental output back to the
// requester. Send delivers ev to both the primary (client-facing) channel
// and the log collector; it returns a relayerr Cancelled error once the
// primary side has gone away, so the tool can abort cooperatively.
type Sink interface {
	Send(ctx context.Context, ev LogEvent) error
	// Closed reports when the primary sink has gone away (client disconnect).
	// Long sub-operations should select against it directly rather than
	// relying solely on Send's return value.
	Closed() <-chan struct{}
}

// Tool is implemented by each entry in the tool catalog. ValidateAndExecute
// must validate params before doing any work, and must observe
// sink.Closed() promptly during long sub-operations.
type Tool interface {
	ValidateAndExecute(ctx context.Context, params json.RawMessage, sink Sink) (isError bool, err error)
}

// dualSink fans every Send out to the log collector unconditionally and to
// the bounded primary channel best-effort, respecting cancellation.
type dualSink struct {
	primary   chan<- LogEvent
	closed    <-chan struct{}
	collector *collector
}

func (s *dualSink) Send(ctx context.Context, ev LogEvent) error {
	s.collector.add(ev)
	select {
	case s.primary <- ev:
		return nil
	case <-s.closed:
		return relayerr.New(relayerr.Cancelled, "client disconnected")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *dualSink) Closed() <-chan struct{} { return s.closed }

// Executor runs tool calls and persists their resulting tool-role message.
type Executor struct {
	store session.Store
}

// New constructs an Executor backed by store.
func New(store session.Store) *Executor {
	return &Executor{store: store}
}

// ExecuteAndPersist runs tool against callRef.Parameters, streaming LogEvents
// to out until the tool returns or closed fires, then persists and returns
// the resulting tool-role message. The returned message's IsError reflects
// either the tool's own classification or its own cancellation.
func (e *Executor) ExecuteAndPersist(
	ctx context.Context,
	sessionID string,
	callRef session.ToolCallRef,
	tool Tool,
	out chan<- LogEvent,
	closed <-chan struct{},
) (session.Message, error) {
	coll := newCollector()
	sink := &dualSink{primary: out, closed: closed, collector: coll}

	isError, err := tool.ValidateAndExecute(ctx, callRef.Parameters, sink)
	if err != nil {
		isError = true
		coll.add(LogEvent{Kind: KindError, Text: err.Error()})
	}

	msg := session.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      session.RoleTool,
		Content:   coll.render(),
		Meta: session.MessageMeta{
			ExecutedCall: &session.ExecutedToolCallRef{
				CallID:  callRef.CallID,
				ToolID:  callRef.ToolID,
				IsError: isError,
			},
		},
		CreatedAt: time.Now().UTC(),
	}
	return e.store.AppendMessage(ctx, msg)
}

// BoundedChannel returns a primary sink channel of the bounded capacity the
// spec calls for (~20 in-flight log lines), preventing a fast tool from
// outrunning a slow client.
func BoundedChannel() chan LogEvent {
	return make(chan LogEvent, 20)
}
