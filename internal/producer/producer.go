// Package producer implements the stream producer (LlmStreamWriter): it pulls
// normalized chunks from a chatmodel.Stream, batches them into the event log
// under the flush/ping/timeout policy, and hands back the accumulated result
// for the caller to persist as a session.Message.
package producer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fa-sharp/rschat-relay/internal/chatmodel"
	"github.com/fa-sharp/rschat-relay/internal/eventlog"
	"github.com/fa-sharp/rschat-relay/internal/relayerr"
	"github.com/fa-sharp/rschat-relay/internal/telemetry"
)

// Tuning constants, grounded on the original stream writer's constants
// (FLUSH_INTERVAL, MAX_CHUNK_SIZE, STREAM_EXPIRE, LLM_TIMEOUT, PING_INTERVAL).
const (
	FlushInterval       = 500 * time.Millisecond
	MaxChunkSize        = 200
	StreamExpireSeconds int64 = 30
	MaxLen              int64 = 500
	LLMTimeout          = 20 * time.Second
	PingInterval        = 2 * time.Second
)

// State is the producer's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateFinalizing State = "finalizing"
	StateCancelled  State = "cancelled"
	StateDone       State = "done"
)

// Result is the accumulated outcome of a Run, ready for persistence.
type Result struct {
	Text      string
	ToolCalls []chatmodel.ToolCall
	Usage     chatmodel.Usage
	Errors    []string
	Cancelled bool
}

// chunkAccumulator holds the not-yet-flushed portion of the response.
type chunkAccumulator struct {
	text      strings.Builder
	toolCalls []chatmodel.ToolCall
	errText   string
}

func (c *chunkAccumulator) hasData() bool {
	return c.text.Len() > 0 || len(c.toolCalls) > 0 || c.errText != ""
}

func (c *chunkAccumulator) reset() {
	c.text.Reset()
	c.toolCalls = nil
	c.errText = ""
}

// Producer drives one streaming response into an eventlog.Log. One Producer
// handles exactly one stream; callers construct a fresh instance per request.
type Producer struct {
	log     eventlog.Log
	key     string
	logger  telemetry.Logger
	metrics telemetry.Metrics

	mu    sync.Mutex
	state State

	current      chunkAccumulator
	completeText strings.Builder
	toolCalls    []chatmodel.ToolCall
	usage        chatmodel.Usage
	errs         []string
}

// New constructs a Producer writing to key. logger/metrics may be nil, in
// which case a no-op implementation is used.
func New(log eventlog.Log, key string, logger telemetry.Logger, metrics telemetry.Metrics) *Producer {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	return &Producer{log: log, key: key, logger: logger, metrics: metrics, state: StateIdle}
}

// State reports the producer's current lifecycle state.
func (p *Producer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Producer) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Start exclusively creates the stream's log entry. Returns a
// relayerr-wrapped AlreadyStreaming error if a producer is already active
// for this key, so callers can reject a duplicate start request.
func (p *Producer) Start(ctx context.Context) error {
	if err := p.log.Create(ctx, p.key, StreamExpireSeconds); err != nil {
		if errors.Is(err, eventlog.ErrAlreadyExists) {
			return relayerr.Wrap(relayerr.AlreadyStreaming, "stream already active for this session", err)
		}
		return err
	}
	p.setState(StateRunning)
	p.metrics.IncCounter("producer.started", 1)
	return nil
}

// Run consumes stream until exhaustion, an unrecoverable error, or
// cancellation (detected when Append reports the log is missing). It always
// closes stream before returning, and leaves the producer in StateCancelled
// or StateFinalizing for the caller to call End.
func (p *Producer) Run(ctx context.Context, stream chatmodel.Stream) Result {
	defer stream.Close()

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go p.runPing(pingCtx)

	lastFlush := time.Now()
	cancelled := false

loop:
	for {
		chunkCtx, cancel := context.WithTimeout(ctx, LLMTimeout)
		chunk, ok, err := stream.Next(chunkCtx)
		cancel()

		if err != nil {
			if errors.Is(chunkCtx.Err(), context.DeadlineExceeded) {
				p.processError(relayerr.StreamTimeout.Error())
			} else {
				p.processError(err.Error())
			}
			break loop
		}
		if !ok {
			break loop
		}
		p.processChunk(chunk)

		if p.shouldFlush(lastFlush) {
			if flushErr := p.flush(ctx); flushErr != nil {
				if errors.Is(flushErr, relayerr.LogMissing) {
					cancelled = true
					break loop
				}
				p.logger.Error(ctx, "producer flush failed", "key", p.key, "error", flushErr.Error())
			}
			lastFlush = time.Now()
		}
	}
	stopPing()

	if !cancelled {
		if flushErr := p.flush(ctx); flushErr != nil {
			if errors.Is(flushErr, relayerr.LogMissing) {
				cancelled = true
			} else {
				p.logger.Error(ctx, "producer final flush failed", "key", p.key, "error", flushErr.Error())
			}
		}
	}

	p.mu.Lock()
	result := Result{
		Text:      p.completeText.String(),
		ToolCalls: append([]chatmodel.ToolCall(nil), p.toolCalls...),
		Usage:     p.usage,
		Errors:    append([]string(nil), p.errs...),
		Cancelled: cancelled,
	}
	p.mu.Unlock()

	if cancelled {
		p.setState(StateCancelled)
		p.metrics.IncCounter("producer.cancelled", 1)
	} else {
		p.setState(StateFinalizing)
	}
	return result
}

// End appends the terminal "end" entry and deletes the log, signaling tail
// readers that the stream is complete. Safe to call after a cancelled Run;
// a missing log is treated as already-ended, not an error.
func (p *Producer) End(ctx context.Context) error {
	err := p.log.AppendTerminal(ctx, p.key, eventlog.Entry{Type: eventlog.TypeEnd})
	p.setState(StateDone)
	if err != nil && errors.Is(err, relayerr.LogMissing) {
		return nil
	}
	return err
}

func (p *Producer) processChunk(c chatmodel.Chunk) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch c.Type {
	case chatmodel.ChunkText:
		p.current.text.WriteString(c.Text)
		p.completeText.WriteString(c.Text)
	case chatmodel.ChunkToolCalls:
		p.current.toolCalls = append(p.current.toolCalls, c.ToolCalls...)
		p.toolCalls = append(p.toolCalls, c.ToolCalls...)
	case chatmodel.ChunkUsage:
		p.usage.Merge(c.Usage)
	case chatmodel.ChunkPendingToolCall:
		// Best-effort UX preview; never logged to the event stream.
	}
}

func (p *Producer) processError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current.errText = msg
	p.errs = append(p.errs, msg)
}

func (p *Producer) shouldFlush(lastFlush time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.current.toolCalls) > 0 || p.current.errText != "" {
		return true
	}
	return p.current.text.Len() >= MaxChunkSize || time.Since(lastFlush) >= FlushInterval
}

// flush writes the accumulated-but-unsent chunk to the log, in the fixed
// order text, tool_calls, error. A no-op when nothing has accumulated.
func (p *Producer) flush(ctx context.Context) error {
	p.mu.Lock()
	if !p.current.hasData() {
		p.mu.Unlock()
		return nil
	}
	text := p.current.text.String()
	toolCalls := p.current.toolCalls
	errText := p.current.errText
	p.current.reset()
	p.mu.Unlock()

	entries := make([]eventlog.Entry, 0, 2+len(toolCalls))
	if text != "" {
		entries = append(entries, eventlog.Entry{Type: eventlog.TypeText, Data: text})
	}
	for _, tc := range toolCalls {
		data, err := json.Marshal(tc)
		if err != nil {
			return err
		}
		entries = append(entries, eventlog.Entry{Type: eventlog.TypeToolCall, Data: string(data)})
	}
	if errText != "" {
		entries = append(entries, eventlog.Entry{Type: eventlog.TypeError, Data: errText})
	}
	return p.log.Append(ctx, p.key, entries, StreamExpireSeconds, MaxLen)
}

// runPing appends a ping entry every PingInterval to refresh the log's TTL
// while the upstream provider is slow to produce the next chunk. It aborts
// silently on the first error, mirroring the original best-effort ping task.
func (p *Producer) runPing(ctx context.Context) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entry := []eventlog.Entry{{Type: eventlog.TypePing}}
			if err := p.log.Append(ctx, p.key, entry, StreamExpireSeconds, MaxLen); err != nil {
				return
			}
		}
	}
}
