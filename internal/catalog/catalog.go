// Package catalog defines the persisted provider and tool configuration
// records a user manages through the CRUD surface in internal/httpapi,
// and the Store port internal/store's MongoDB implementation satisfies.
package catalog

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Store implementations.
var (
	ErrProviderNotFound = errors.New("catalog: provider not found")
	ErrToolNotFound     = errors.New("catalog: tool not found")
)

// Provider is a user-configured upstream LLM provider credential.
type Provider struct {
	ID              string
	UserID          string
	Name            string
	Kind            string // "anthropic", "openai", "ollama", "openrouter"
	EncryptedAPIKey string
	BaseURL         string
	CreatedAt       time.Time
}

// ToolConfig is a user-defined tool's stored configuration (e.g. the
// custom API tool's base URL and header template, serialized as JSON).
type ToolConfig struct {
	ID       string
	UserID   string
	Name     string
	ToolType string
	Config   []byte
}

// Store persists Provider and ToolConfig records.
type Store interface {
	CreateProvider(ctx context.Context, p Provider) (Provider, error)
	GetProvider(ctx context.Context, userID, providerID string) (Provider, error)
	ListProviders(ctx context.Context, userID string) ([]Provider, error)
	DeleteProvider(ctx context.Context, userID, providerID string) error

	CreateTool(ctx context.Context, t ToolConfig) (ToolConfig, error)
	ListTools(ctx context.Context, userID string) ([]ToolConfig, error)
	DeleteTool(ctx context.Context, userID, toolID string) error
}
