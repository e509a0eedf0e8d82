package httpapi

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/fa-sharp/rschat-relay/internal/catalog"
	"github.com/fa-sharp/rschat-relay/internal/toolexec"
	"github.com/fa-sharp/rschat-relay/internal/tools/codeexec"
	"github.com/fa-sharp/rschat-relay/internal/tools/customapi"
	"github.com/fa-sharp/rschat-relay/internal/tools/httprequest"
	"github.com/fa-sharp/rschat-relay/internal/tools/systeminfo"
	"github.com/fa-sharp/rschat-relay/internal/tools/websearch"
)

// webSearchConfig is the stored config shape for a ToolConfig with
// ToolType "web_search".
type webSearchConfig struct {
	Provider       string `json:"provider"`
	APIKey         string `json:"api_key"`
	SearchEngineID string `json:"search_engine_id,omitempty"`
}

// ToolRegistry builds a toolexec.Tool from a stored catalog.ToolConfig,
// dispatching on ToolType. Every tool, system_info included, is constructed
// anew on each Build call.
type ToolRegistry struct {
	StartedAt       time.Time
	CodeExecTimeout time.Duration
}

// NewToolRegistry constructs a registry; startedAt seeds the systeminfo
// tool's uptime calculation.
func NewToolRegistry(startedAt time.Time) *ToolRegistry {
	return &ToolRegistry{StartedAt: startedAt, CodeExecTimeout: 10 * time.Second}
}

// Build constructs the toolexec.Tool matching cfg.ToolType.
func (r *ToolRegistry) Build(cfg catalog.ToolConfig) (toolexec.Tool, error) {
	switch cfg.ToolType {
	case "http_request":
		limiter := rate.NewLimiter(rate.Limit(5), 10)
		return httprequest.New(limiter), nil
	case "custom_api":
		var def customapi.Definition
		if err := json.Unmarshal(cfg.Config, &def); err != nil {
			return nil, fmt.Errorf("httpapi: decode custom_api config: %w", err)
		}
		return customapi.New(def), nil
	case "web_search":
		var wc webSearchConfig
		if err := json.Unmarshal(cfg.Config, &wc); err != nil {
			return nil, fmt.Errorf("httpapi: decode web_search config: %w", err)
		}
		provider, err := buildWebSearchProvider(wc)
		if err != nil {
			return nil, err
		}
		limiter := rate.NewLimiter(rate.Limit(1), 3)
		return websearch.New(provider, limiter), nil
	case "code_exec":
		return codeexec.New(r.CodeExecTimeout), nil
	case "system_info":
		return systeminfo.New(r.StartedAt), nil
	default:
		return nil, fmt.Errorf("httpapi: unknown tool type %q", cfg.ToolType)
	}
}

func buildWebSearchProvider(wc webSearchConfig) (websearch.Provider, error) {
	switch wc.Provider {
	case "brave":
		return websearch.NewBraveProvider(wc.APIKey), nil
	case "exa":
		return websearch.NewExaProvider(wc.APIKey), nil
	case "google":
		return websearch.NewGoogleProvider(wc.APIKey, wc.SearchEngineID), nil
	case "serpapi":
		return websearch.NewSerpAPIProvider(wc.APIKey), nil
	default:
		return nil, fmt.Errorf("httpapi: unknown web search provider %q", wc.Provider)
	}
}
