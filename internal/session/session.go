// Package session defines the persisted Session/Message data model (§3) and
// the Store port the producer and HTTP transport depend on. Concrete storage
// lives in internal/store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Sentinel errors returned by Store implementations.
var (
	ErrSessionNotFound = errors.New("session: not found")
	ErrMessageNotFound = errors.New("session: message not found")
)

// Session is one chat session owned by a user.
type Session struct {
	ID        string
	UserID    string
	Title     string
	Meta      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCallRef is the pending tool call shape embedded in an assistant
// message's meta (§3 ToolCall).
type ToolCallRef struct {
	CallID     string          `bson:"call_id" json:"call_id"`
	ToolID     string          `bson:"tool_id" json:"tool_id"`
	ToolName   string          `bson:"tool_name" json:"tool_name"`
	ToolType   string          `bson:"tool_type" json:"tool_type"`
	Parameters json.RawMessage `bson:"parameters" json:"parameters"`
}

// ExecutedToolCallRef is embedded in a tool-role message's meta (§3
// ExecutedToolCall), referencing exactly one prior pending call.
type ExecutedToolCallRef struct {
	CallID  string `bson:"call_id" json:"call_id"`
	ToolID  string `bson:"tool_id" json:"tool_id"`
	IsError bool   `bson:"is_error" json:"is_error"`
}

// Usage mirrors chatmodel.Usage for persistence, since session must not
// import chatmodel (it is a storage-layer concern, not a provider one).
type Usage struct {
	InputTokens  *int     `bson:"input_tokens,omitempty" json:"input_tokens,omitempty"`
	OutputTokens *int     `bson:"output_tokens,omitempty" json:"output_tokens,omitempty"`
	Cost         *float64 `bson:"cost,omitempty" json:"cost,omitempty"`
}

// MessageMeta is the tagged record of optional fields carried by a Message,
// populated according to its Role.
type MessageMeta struct {
	ToolCalls     []ToolCallRef         `bson:"tool_calls,omitempty" json:"tool_calls,omitempty"`
	ExecutedCall  *ExecutedToolCallRef  `bson:"executed_call,omitempty" json:"executed_call,omitempty"`
	Usage         *Usage                `bson:"usage,omitempty" json:"usage,omitempty"`
	Interrupted   bool                  `bson:"interrupted,omitempty" json:"interrupted,omitempty"`
	ProviderID    string                `bson:"provider_id,omitempty" json:"provider_id,omitempty"`
	Model         string                `bson:"model,omitempty" json:"model,omitempty"`
}

// Message is one chat message. Messages within a session are totally
// ordered by CreatedAt.
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Meta      MessageMeta
	CreatedAt time.Time
}

// Store persists sessions and messages. Implementations must make
// CreateSession idempotent for a given ID ($setOnInsert-style upsert).
type Store interface {
	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, userID, sessionID string) (Session, error)
	ListSessions(ctx context.Context, userID string) ([]Session, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
	UpdateSessionTitle(ctx context.Context, userID, sessionID, title string) error

	AppendMessage(ctx context.Context, m Message) (Message, error)
	GetMessage(ctx context.Context, sessionID, messageID string) (Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
}
