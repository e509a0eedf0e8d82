// Package ollama implements chatmodel.Adapter for a local Ollama server's
// /api/chat streaming endpoint. No official Go SDK exists in the pack;
// Ollama's stream is newline-delimited JSON rather than SSE, so this
// adapter is a hand-rolled decoder over sseutil.JSONLScanner.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fa-sharp/rschat-relay/internal/chatmodel"
	"github.com/fa-sharp/rschat-relay/internal/upstream/sseutil"
)

// Adapter implements chatmodel.Adapter against a local or remote Ollama
// server's /api/chat endpoint.
type Adapter struct {
	client  *http.Client
	baseURL string
	model   string
}

// New constructs an Adapter targeting baseURL (e.g. "http://localhost:11434").
func New(client *http.Client, baseURL, model string) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{client: client, baseURL: baseURL, model: model}
}

type chatMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ollamaToolUse `json:"tool_calls,omitempty"`
}

type ollamaToolUse struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type requestBody struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []ollamaTool  `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type responseLine struct {
	Message struct {
		Content   string          `json:"content"`
		ToolCalls []ollamaToolUse `json:"tool_calls"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// ChatStream implements chatmodel.Adapter.
func (a *Adapter) ChatStream(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition, opts chatmodel.Options) (chatmodel.Stream, error) {
	model := opts.Model
	if model == "" {
		model = a.model
	}
	body := requestBody{Model: model, Stream: true, Messages: encodeMessages(messages)}
	if len(tools) > 0 {
		body.Tools = encodeTools(tools)
	}
	if opts.Temperature != nil {
		body.Options = map[string]any{"temperature": *opts.Temperature}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, chatmodel.NewProviderError("ollama", chatmodel.ProviderErrorKindDecode, 0, "", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, chatmodel.NewProviderError("ollama", chatmodel.ProviderErrorKindTransport, 0, "", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, chatmodel.NewProviderError("ollama", chatmodel.ProviderErrorKindTransport, 0, "", "request failed", err)
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, chatmodel.NewProviderError("ollama", chatmodel.ProviderErrorKindHTTPStatus, resp.StatusCode, string(raw), "non-2xx response", nil)
	}
	return &stream{body: resp.Body, scanner: sseutil.NewJSONLScanner(resp.Body), tools: tools}, nil
}

func encodeMessages(messages []chatmodel.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		if m.IsEmpty() {
			continue
		}
		cm := chatMessage{Role: string(m.Role)}
		for _, p := range m.Parts {
			switch v := p.(type) {
			case chatmodel.TextPart:
				cm.Content += v.Text
			case chatmodel.ToolResultPart:
				cm.Content += v.Content
			case chatmodel.ToolUsePart:
				tu := ollamaToolUse{}
				tu.Function.Name = v.ToolName
				tu.Function.Arguments = v.Parameters
				cm.ToolCalls = append(cm.ToolCalls, tu)
			}
		}
		out = append(out, cm)
	}
	return out
}

func encodeTools(tools []chatmodel.ToolDefinition) []ollamaTool {
	out := make([]ollamaTool, 0, len(tools))
	for _, t := range tools {
		ot := ollamaTool{Type: "function"}
		ot.Function.Name = t.Name
		ot.Function.Description = t.Description
		ot.Function.Parameters = t.InputSchema
		out = append(out, ot)
	}
	return out
}

type stream struct {
	body    io.ReadCloser
	scanner *sseutil.JSONLScanner
	tools   []chatmodel.ToolDefinition
}

// resolveToolID looks up the caller-supplied ToolDefinition matching name,
// returning its ToolID. An unresolved name cannot be executed and its call
// is dropped.
func (s *stream) resolveToolID(name string) (string, bool) {
	for _, t := range s.tools {
		if t.Name == name {
			return t.ToolID, true
		}
	}
	return "", false
}

// Next implements chatmodel.Stream, translating one JSONL line into a Chunk.
// Each line's content is a delta of the assistant text, which the adapter
// emits as-is; the producer's accumulation appends each Chunk as an
// incremental contribution regardless of provider chunking granularity.
func (s *stream) Next(ctx context.Context) (chatmodel.Chunk, bool, error) {
	select {
	case <-ctx.Done():
		return chatmodel.Chunk{}, false, ctx.Err()
	default:
	}
	line, err := s.scanner.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return chatmodel.Chunk{}, false, nil
		}
		return chatmodel.Chunk{}, false, chatmodel.NewProviderError("ollama", chatmodel.ProviderErrorKindTransport, 0, "", "stream read", err)
	}

	var rl responseLine
	if err := json.Unmarshal(line, &rl); err != nil {
		return chatmodel.Chunk{}, false, chatmodel.NewProviderError("ollama", chatmodel.ProviderErrorKindDecode, 0, string(line), "decode line", err)
	}

	if len(rl.Message.ToolCalls) > 0 {
		calls := make([]chatmodel.ToolCall, 0, len(rl.Message.ToolCalls))
		for _, tc := range rl.Message.ToolCalls {
			toolID, ok := s.resolveToolID(tc.Function.Name)
			if !ok {
				continue
			}
			calls = append(calls, chatmodel.ToolCall{ToolID: toolID, ToolName: tc.Function.Name, Parameters: tc.Function.Arguments})
		}
		if len(calls) > 0 {
			return chatmodel.Chunk{Type: chatmodel.ChunkToolCalls, ToolCalls: calls}, true, nil
		}
		return s.Next(ctx)
	}
	if rl.Message.Content != "" {
		return chatmodel.Chunk{Type: chatmodel.ChunkText, Text: rl.Message.Content}, true, nil
	}
	if rl.Done {
		in, out := rl.PromptEvalCount, rl.EvalCount
		return chatmodel.Chunk{Type: chatmodel.ChunkUsage, Usage: chatmodel.Usage{InputTokens: &in, OutputTokens: &out}}, true, nil
	}
	return s.Next(ctx)
}

// Close implements chatmodel.Stream.
func (s *stream) Close() error { return s.body.Close() }
