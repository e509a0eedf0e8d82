// Package openrouter implements chatmodel.Adapter for OpenRouter's
// OpenAI-compatible chat completions streaming endpoint. It reuses the
// shared sseutil.Scanner rather than the openai-go SDK, since OpenRouter's
// wire format is close to but not guaranteed identical to OpenAI's (extra
// routing fields, provider-specific error envelopes), so a hand-rolled
// decode here keeps the relay's version skew independent of openai-go.
package openrouter

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

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Adapter implements chatmodel.Adapter against OpenRouter's chat completions API.
type Adapter struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// New constructs an Adapter. baseURL defaults to OpenRouter's public API
// when empty, allowing the same adapter to target a self-hosted gateway.
func New(client *http.Client, apiKey, baseURL, model string) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{client: client, baseURL: baseURL, apiKey: apiKey, model: model}
}

type toolCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type toolCall struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Function toolCallFunction `json:"function"`
}

type wireMessage struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type requestBody struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Stream      bool          `json:"stream"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type chunkDelta struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type chunkChoice struct {
	Delta        chunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason"`
}

type responseChunk struct {
	Choices []chunkChoice `json:"choices"`
	Usage   *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ChatStream implements chatmodel.Adapter.
func (a *Adapter) ChatStream(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition, opts chatmodel.Options) (chatmodel.Stream, error) {
	model := opts.Model
	if model == "" {
		model = a.model
	}
	body := requestBody{Model: model, Stream: true, Messages: encodeMessages(messages), MaxTokens: opts.MaxTokens, Temperature: opts.Temperature}
	if len(tools) > 0 {
		body.Tools = encodeTools(tools)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, chatmodel.NewProviderError("openrouter", chatmodel.ProviderErrorKindDecode, 0, "", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, chatmodel.NewProviderError("openrouter", chatmodel.ProviderErrorKindTransport, 0, "", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, chatmodel.NewProviderError("openrouter", chatmodel.ProviderErrorKindTransport, 0, "", "request failed", err)
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, chatmodel.NewProviderError("openrouter", chatmodel.ProviderErrorKindHTTPStatus, resp.StatusCode, string(raw), "non-2xx response", nil)
	}
	return &stream{body: resp.Body, scanner: sseutil.NewScanner(resp.Body), toolNames: make(map[int]string), tools: tools}, nil
}

func encodeMessages(messages []chatmodel.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		if m.IsEmpty() {
			continue
		}
		wm := wireMessage{Role: string(m.Role)}
		for _, p := range m.Parts {
			switch v := p.(type) {
			case chatmodel.TextPart:
				wm.Content += v.Text
			case chatmodel.ToolResultPart:
				wm.Content += v.Content
			case chatmodel.ToolUsePart:
				wm.ToolCalls = append(wm.ToolCalls, toolCall{
					ID:       v.CallID,
					Function: toolCallFunction{Name: v.ToolName, Arguments: string(v.Parameters)},
				})
			}
		}
		out = append(out, wm)
	}
	return out
}

func encodeTools(tools []chatmodel.ToolDefinition) []wireTool {
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		wt := wireTool{Type: "function"}
		wt.Function.Name = t.Name
		wt.Function.Description = t.Description
		wt.Function.Parameters = t.InputSchema
		out = append(out, wt)
	}
	return out
}

type stream struct {
	body      io.ReadCloser
	scanner   *sseutil.Scanner
	toolNames map[int]string
	toolArgs  map[int]*bytes.Buffer
	tools     []chatmodel.ToolDefinition
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

// Next implements chatmodel.Stream over OpenRouter's OpenAI-compatible SSE
// frames, accumulating streamed tool-call argument fragments by index and
// emitting a ChunkToolCalls only once finish_reason arrives for that choice.
func (s *stream) Next(ctx context.Context) (chatmodel.Chunk, bool, error) {
	if s.toolArgs == nil {
		s.toolArgs = make(map[int]*bytes.Buffer)
	}
	for {
		select {
		case <-ctx.Done():
			return chatmodel.Chunk{}, false, ctx.Err()
		default:
		}
		frame, done, err := s.scanner.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return chatmodel.Chunk{}, false, nil
			}
			return chatmodel.Chunk{}, false, chatmodel.NewProviderError("openrouter", chatmodel.ProviderErrorKindTransport, 0, "", "stream read", err)
		}
		if done {
			return chatmodel.Chunk{}, false, nil
		}

		var rc responseChunk
		if err := json.Unmarshal(frame.Data, &rc); err != nil {
			return chatmodel.Chunk{}, false, chatmodel.NewProviderError("openrouter", chatmodel.ProviderErrorKindDecode, 0, string(frame.Data), "decode chunk", err)
		}
		if rc.Usage != nil {
			in, out := rc.Usage.PromptTokens, rc.Usage.CompletionTokens
			return chatmodel.Chunk{Type: chatmodel.ChunkUsage, Usage: chatmodel.Usage{InputTokens: &in, OutputTokens: &out}}, true, nil
		}
		if len(rc.Choices) == 0 {
			continue
		}
		choice := rc.Choices[0]
		for _, tc := range choice.Delta.ToolCalls {
			if tc.Function.Name != "" {
				s.toolNames[tc.Index] = tc.Function.Name
			}
			buf, ok := s.toolArgs[tc.Index]
			if !ok {
				buf = &bytes.Buffer{}
				s.toolArgs[tc.Index] = buf
			}
			buf.WriteString(tc.Function.Arguments)
		}
		if choice.Delta.Content != "" {
			return chatmodel.Chunk{Type: chatmodel.ChunkText, Text: choice.Delta.Content}, true, nil
		}
		if choice.FinishReason == "tool_calls" && len(s.toolArgs) > 0 {
			calls := make([]chatmodel.ToolCall, 0, len(s.toolArgs))
			for idx, buf := range s.toolArgs {
				name := s.toolNames[idx]
				toolID, ok := s.resolveToolID(name)
				if !ok {
					continue
				}
				calls = append(calls, chatmodel.ToolCall{ToolID: toolID, ToolName: name, Parameters: buf.Bytes()})
			}
			s.toolArgs = make(map[int]*bytes.Buffer)
			if len(calls) == 0 {
				continue
			}
			return chatmodel.Chunk{Type: chatmodel.ChunkToolCalls, ToolCalls: calls}, true, nil
		}
	}
}

// Close implements chatmodel.Stream.
func (s *stream) Close() error { return s.body.Close() }
