// Package customapi implements the custom external-API tool: it templates a
// stored API definition (base URL, header template, query-parameter mapping)
// with the call's JSON parameters, grounded on
// original_source's tools/external_api/custom_api.rs.
package customapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/fa-sharp/rschat-relay/internal/relayerr"
	"github.com/fa-sharp/rschat-relay/internal/toolexec"
)

// Definition is the stored configuration for one custom API tool instance,
// as persisted in the tools collection's config field.
type Definition struct {
	Name          string            `json:"name" bson:"name"`
	Method        string            `json:"method" bson:"method"`
	BaseURL       string            `json:"base_url" bson:"base_url"`
	HeaderTemplate map[string]string `json:"header_template" bson:"header_template"`
	// QueryParamPaths maps query-string keys to a gjson path into the call's
	// parameters document.
	QueryParamPaths map[string]string `json:"query_param_paths" bson:"query_param_paths"`
}

// Tool invokes one Definition per instance; a user may configure many.
type Tool struct {
	Def    Definition
	Client *http.Client
}

// New constructs a Tool bound to def.
func New(def Definition) *Tool {
	return &Tool{Def: def, Client: &http.Client{Timeout: 30 * time.Second}}
}

// ValidateAndExecute implements toolexec.Tool. It does not validate params
// against a JSON Schema: the Definition carries none, and nothing validates
// them before dispatch. It builds the request by
// resolving each configured query param path against params with gjson and
// resolving each header value as a literal or "$.path" gjson expression.
func (t *Tool) ValidateAndExecute(ctx context.Context, params json.RawMessage, sink toolexec.Sink) (bool, error) {
	url := t.Def.BaseURL
	for i, key := range sortedKeys(t.Def.QueryParamPaths) {
		value := gjson.GetBytes(params, t.Def.QueryParamPaths[key]).String()
		sep := "?"
		if i > 0 || strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + key + "=" + value
	}

	body, err := sjson.SetBytes([]byte(`{}`), "params", json.RawMessage(params))
	if err != nil {
		return true, relayerr.Wrap(relayerr.ToolExecution, "build request body", err)
	}

	_ = sink.Send(ctx, toolexec.LogEvent{Kind: toolexec.KindLog, Text: fmt.Sprintf("%s %s", t.Def.Method, url)})

	req, err := http.NewRequestWithContext(ctx, t.Def.Method, url, strings.NewReader(string(body)))
	if err != nil {
		return true, relayerr.Wrap(relayerr.ToolExecution, "build request", err)
	}
	for k, v := range t.Def.HeaderTemplate {
		if resolved := gjson.GetBytes(params, strings.TrimPrefix(v, "$.")); strings.HasPrefix(v, "$.") && resolved.Exists() {
			req.Header.Set(k, resolved.String())
		} else {
			req.Header.Set(k, v)
		}
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		_ = sink.Send(ctx, toolexec.LogEvent{Kind: toolexec.KindError, Text: err.Error()})
		return true, relayerr.Wrap(relayerr.ToolExecution, "do request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return true, relayerr.Wrap(relayerr.ToolExecution, "read response body", err)
	}

	isError := resp.StatusCode >= 400
	kind := toolexec.KindResult
	if isError {
		kind = toolexec.KindError
	}
	_ = sink.Send(ctx, toolexec.LogEvent{Kind: kind, Text: string(respBody)})
	return isError, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
