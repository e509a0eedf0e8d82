// Package websearch implements the web search tool as a single Tool backed
// by one of several provider sub-adapters, grounded on
// original_source's tools/web_search/{brave,exa,google,serpapi}.rs.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/fa-sharp/rschat-relay/internal/relayerr"
	"github.com/fa-sharp/rschat-relay/internal/toolexec"
	"github.com/fa-sharp/rschat-relay/internal/tools"
)

// Result is one normalized search hit, the common shape every Provider
// parses its provider-specific JSON response into.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider issues a provider-specific search request and returns normalized
// results. One implementation per search API (Brave, Exa, Google, SerpApi).
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

type queryParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// ParamSchema is the JSON Schema parameters must satisfy.
const ParamSchema = `{
  "type": "object",
  "required": ["query"],
  "properties": {
    "query": {"type": "string", "minLength": 1},
    "max_results": {"type": "integer", "minimum": 1, "maximum": 20}
  }
}`

// Tool dispatches search calls to a single configured Provider, rate
// limited per tool instance.
type Tool struct {
	Provider Provider
	Limiter  *rate.Limiter
}

// New constructs a Tool bound to provider.
func New(provider Provider, limiter *rate.Limiter) *Tool {
	return &Tool{Provider: provider, Limiter: limiter}
}

// ValidateAndExecute implements toolexec.Tool.
func (t *Tool) ValidateAndExecute(ctx context.Context, raw json.RawMessage, sink toolexec.Sink) (bool, error) {
	if err := tools.ValidateParams(json.RawMessage(ParamSchema), raw); err != nil {
		return true, err
	}
	var q queryParams
	if err := json.Unmarshal(raw, &q); err != nil {
		return true, relayerr.Wrap(relayerr.InvalidParameters, "unmarshal parameters", err)
	}
	if q.Query == "" {
		return true, relayerr.New(relayerr.InvalidParameters, "query must not be empty")
	}
	if q.MaxResults <= 0 {
		q.MaxResults = 5
	}

	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return true, err
		}
	}

	_ = sink.Send(ctx, toolexec.LogEvent{Kind: toolexec.KindLog,
		Text: fmt.Sprintf("searching %q via %s", q.Query, t.Provider.Name())})

	results, err := t.Provider.Search(ctx, q.Query, q.MaxResults)
	if err != nil {
		_ = sink.Send(ctx, toolexec.LogEvent{Kind: toolexec.KindError, Text: err.Error()})
		return true, relayerr.Wrap(relayerr.ToolExecution, "search failed", err)
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		return true, relayerr.Wrap(relayerr.ToolExecution, "marshal results", err)
	}
	_ = sink.Send(ctx, toolexec.LogEvent{Kind: toolexec.KindResult, Text: string(encoded)})
	return false, nil
}
