package chatmodel

import "context"

// ChunkType discriminates the tagged variants of Chunk.
type ChunkType string

const (
	ChunkText            ChunkType = "text"
	ChunkPendingToolCall ChunkType = "pending_tool_call"
	ChunkToolCalls       ChunkType = "tool_calls"
	ChunkUsage           ChunkType = "usage"
)

// Chunk is one normalized piece of an upstream provider's streaming
// response. Exactly the field matching Type is meaningful.
type Chunk struct {
	Type ChunkType

	// Text carries incremental assistant text when Type == ChunkText.
	Text string

	// PendingToolCall carries a latency-sensitive preview of a tool call the
	// provider is still constructing, when Type == ChunkPendingToolCall.
	// Consumption is optional; the producer does not log it.
	PendingToolCall *PendingToolCall

	// ToolCalls carries fully resolved tool calls when Type == ChunkToolCalls.
	ToolCalls []ToolCall

	// Usage carries usage counters when Type == ChunkUsage.
	Usage Usage
}

// PendingToolCall previews a tool call still being streamed by the provider.
type PendingToolCall struct {
	Index    int
	ToolName string
}

// Adapter normalizes one provider's streaming chat completion API into the
// shared Chunk vocabulary. One implementation per provider.
type Adapter interface {
	// ChatStream starts a streaming chat completion and returns a lazy
	// sequence of chunks. The returned Stream must be closed by the caller.
	ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition, opts Options) (Stream, error)
}

// Stream yields a provider's normalized chunk sequence. Next returns
// (Chunk{}, false, nil) exactly once, when the upstream stream is exhausted.
// A non-nil error from Next is always accompanied by ok == false.
type Stream interface {
	Next(ctx context.Context) (chunk Chunk, ok bool, err error)
	Close() error
}
