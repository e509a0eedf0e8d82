// Package chatmodel defines the provider-agnostic message and streaming
// vocabulary shared by every UpstreamAdapter: messages built from typed
// parts, tool definitions/calls, usage counters, and the normalized chunk
// stream the producer consumes.
package chatmodel

import "encoding/json"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Part is a marker interface implemented by every message content block.
type Part interface{ isPart() }

// TextPart is plain text content.
type TextPart struct{ Text string }

func (TextPart) isPart() {}

// ToolUsePart records a tool call issued by the assistant within a message.
type ToolUsePart struct {
	CallID     string
	ToolName   string
	Parameters json.RawMessage
}

func (ToolUsePart) isPart() {}

// ToolResultPart carries the result of a previously issued tool call, used
// when converting a tool-role Message into the per-turn request.
type ToolResultPart struct {
	CallID  string
	Content string
	IsError bool
}

func (ToolResultPart) isPart() {}

// Message is a single chat turn.
type Message struct {
	Role  Role
	Parts []Part
}

// IsEmpty reports whether the message carries no content parts, in which
// case adapters must drop it rather than send it upstream.
func (m Message) IsEmpty() bool { return len(m.Parts) == 0 }

// ToolDefinition describes a tool exposed to the model for this request.
type ToolDefinition struct {
	ToolID      string
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolCall is a resolved tool invocation emitted by the model, correlated
// against the caller-supplied ToolDefinition list by name.
type ToolCall struct {
	CallID     string
	ToolID     string
	ToolName   string
	Parameters json.RawMessage
}

// Usage tracks token/cost counters for a single response. Fields are
// merged last-write-wins across chunks, per field.
type Usage struct {
	InputTokens  *int
	OutputTokens *int
	Cost         *float64
}

// Merge applies non-nil fields of other onto u, last-write-wins per field.
func (u *Usage) Merge(other Usage) {
	if other.InputTokens != nil {
		u.InputTokens = other.InputTokens
	}
	if other.OutputTokens != nil {
		u.OutputTokens = other.OutputTokens
	}
	if other.Cost != nil {
		u.Cost = other.Cost
	}
}

// Options configures a single chat_stream invocation.
type Options struct {
	Model       string
	MaxTokens   *int
	Temperature *float64
}
