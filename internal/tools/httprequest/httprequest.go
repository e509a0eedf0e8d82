// Package httprequest implements the HTTP request tool: issuing an
// arbitrary HTTP request described by the call parameters, grounded on
// original_source's tools/http_request.rs.
package httprequest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/fa-sharp/rschat-relay/internal/relayerr"
	"github.com/fa-sharp/rschat-relay/internal/toolexec"
	"github.com/fa-sharp/rschat-relay/internal/tools"
)

// ParamSchema is the JSON Schema parameters must satisfy.
const ParamSchema = `{
  "type": "object",
  "required": ["method", "url"],
  "properties": {
    "method": {"type": "string", "enum": ["GET", "POST", "PUT", "PATCH", "DELETE"]},
    "url": {"type": "string"},
    "headers": {"type": "object"},
    "body": {"type": "string"}
  }
}`

type params struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// Tool issues a single bounded HTTP request per call, streaming a Log event
// with the request line, a Debug event with the response status, and the
// response body as a Result event (an Error event for status 400 or above).
type Tool struct {
	Client  *http.Client
	Limiter *rate.Limiter
}

// New constructs a Tool with a bounded client timeout and a shared
// per-instance rate limiter.
func New(limiter *rate.Limiter) *Tool {
	return &Tool{Client: &http.Client{Timeout: 30 * time.Second}, Limiter: limiter}
}

// ValidateAndExecute implements toolexec.Tool.
func (t *Tool) ValidateAndExecute(ctx context.Context, raw json.RawMessage, sink toolexec.Sink) (bool, error) {
	if err := tools.ValidateParams(json.RawMessage(ParamSchema), raw); err != nil {
		return true, err
	}
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return true, relayerr.Wrap(relayerr.InvalidParameters, "unmarshal parameters", err)
	}

	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return true, err
		}
	}

	_ = sink.Send(ctx, toolexec.LogEvent{Kind: toolexec.KindLog, Text: fmt.Sprintf("%s %s", p.Method, p.URL)})

	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, bytes.NewBufferString(p.Body))
	if err != nil {
		return true, relayerr.Wrap(relayerr.ToolExecution, "build request", err)
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		_ = sink.Send(ctx, toolexec.LogEvent{Kind: toolexec.KindError, Text: err.Error()})
		return true, relayerr.Wrap(relayerr.ToolExecution, "do request", err)
	}
	defer resp.Body.Close()

	_ = sink.Send(ctx, toolexec.LogEvent{Kind: toolexec.KindDebug, Text: fmt.Sprintf("status %d", resp.StatusCode)})

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return true, relayerr.Wrap(relayerr.ToolExecution, "read response body", err)
	}

	isError := resp.StatusCode >= 400
	kind := toolexec.KindResult
	if isError {
		kind = toolexec.KindError
	}
	_ = sink.Send(ctx, toolexec.LogEvent{Kind: kind, Text: string(body)})
	return isError, nil
}
