package httpapi

import (
	"fmt"
	"net/http"

	"github.com/fa-sharp/rschat-relay/internal/catalog"
	"github.com/fa-sharp/rschat-relay/internal/chatmodel"
	"github.com/fa-sharp/rschat-relay/internal/crypto"
	"github.com/fa-sharp/rschat-relay/internal/upstream/anthropic"
	"github.com/fa-sharp/rschat-relay/internal/upstream/ollama"
	"github.com/fa-sharp/rschat-relay/internal/upstream/openai"
	"github.com/fa-sharp/rschat-relay/internal/upstream/openrouter"
)

// AdapterRegistry builds a chatmodel.Adapter for a stored provider record,
// decrypting its API key on demand rather than holding adapters (and their
// embedded secrets) resident for the life of the process.
type AdapterRegistry struct {
	Secrets    *crypto.SecretBox
	HTTPClient *http.Client
}

// NewAdapterRegistry constructs a registry bound to a single HTTP client,
// reused across every adapter it builds.
func NewAdapterRegistry(secrets *crypto.SecretBox, client *http.Client) *AdapterRegistry {
	if client == nil {
		client = http.DefaultClient
	}
	return &AdapterRegistry{Secrets: secrets, HTTPClient: client}
}

// Build constructs the adapter matching p.Kind, using model as the default
// model unless the caller overrides it via Options.
func (r *AdapterRegistry) Build(p catalog.Provider, model string) (chatmodel.Adapter, error) {
	apiKey, err := r.Secrets.DecryptString(p.EncryptedAPIKey)
	if err != nil {
		return nil, err
	}
	switch p.Kind {
	case "anthropic":
		return anthropic.New(apiKey, model), nil
	case "openai":
		return openai.New(apiKey, model, p.BaseURL), nil
	case "ollama":
		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.New(r.HTTPClient, baseURL, model), nil
	case "openrouter":
		return openrouter.New(r.HTTPClient, apiKey, p.BaseURL, model), nil
	default:
		return nil, fmt.Errorf("httpapi: unknown provider kind %q", p.Kind)
	}
}
