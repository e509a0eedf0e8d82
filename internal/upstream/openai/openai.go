// Package openai implements chatmodel.Adapter for the OpenAI Chat
// Completions streaming API, grounded on other_examples' OpenAI provider
// (the official github.com/openai/openai-go SDK's ChatCompletionAccumulator
// and streaming loop) rather than the teacher's own openai client, which
// is built on a legacy community SDK not present in go.mod.
package openai

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"github.com/fa-sharp/rschat-relay/internal/chatmodel"
)

// Adapter implements chatmodel.Adapter against the OpenAI Chat Completions API.
type Adapter struct {
	client openai.Client
	model  string
}

// New constructs an Adapter. baseURL overrides the endpoint for
// OpenAI-compatible deployments when non-empty.
func New(apiKey, model, baseURL string) *Adapter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Adapter{client: openai.NewClient(opts...), model: model}
}

// ChatStream implements chatmodel.Adapter.
func (a *Adapter) ChatStream(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition, opts chatmodel.Options) (chatmodel.Stream, error) {
	params, err := a.buildParams(messages, tools, opts)
	if err != nil {
		return nil, chatmodel.NewProviderError("openai", chatmodel.ProviderErrorKindDecode, 0, "", "encode request", err)
	}
	raw := a.client.Chat.Completions.NewStreaming(ctx, *params)
	return &stream{raw: raw, tools: tools}, nil
}

func (a *Adapter) buildParams(messages []chatmodel.Message, tools []chatmodel.ToolDefinition, opts chatmodel.Options) (*openai.ChatCompletionNewParams, error) {
	model := opts.Model
	if model == "" {
		model = a.model
	}
	if model == "" {
		return nil, errors.New("openai: model identifier is required")
	}

	msgs, err := encodeMessages(messages)
	if err != nil {
		return nil, err
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: msgs,
	}
	if opts.MaxTokens != nil && *opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(*opts.MaxTokens))
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if len(tools) > 0 {
		toolParams := make([]openai.ChatCompletionToolParam, 0, len(tools))
		for _, t := range tools {
			var schema map[string]any
			if len(t.InputSchema) > 0 {
				if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
					return nil, err
				}
			}
			toolParams = append(toolParams, openai.ChatCompletionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  shared.FunctionParameters(schema),
				},
			})
		}
		params.Tools = toolParams
	}
	return &params, nil
}

func encodeMessages(messages []chatmodel.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		if m.IsEmpty() {
			continue
		}
		switch m.Role {
		case chatmodel.RoleSystem:
			for _, p := range m.Parts {
				if tp, ok := p.(chatmodel.TextPart); ok && tp.Text != "" {
					out = append(out, openai.SystemMessage(tp.Text))
				}
			}
		case chatmodel.RoleUser:
			var text string
			for _, p := range m.Parts {
				if tp, ok := p.(chatmodel.TextPart); ok {
					text += tp.Text
				}
			}
			if text != "" {
				out = append(out, openai.UserMessage(text))
			}
		case chatmodel.RoleAssistant:
			var text string
			var toolCalls []openai.ChatCompletionMessageToolCallParam
			for _, p := range m.Parts {
				switch v := p.(type) {
				case chatmodel.TextPart:
					text += v.Text
				case chatmodel.ToolUsePart:
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
						ID:   v.CallID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      v.ToolName,
							Arguments: string(v.Parameters),
						},
					})
				}
			}
			if text == "" && len(toolCalls) == 0 {
				continue
			}
			assistantMsg := openai.ChatCompletionAssistantMessageParam{}
			if text != "" {
				assistantMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(text),
				}
			}
			if len(toolCalls) > 0 {
				assistantMsg.ToolCalls = toolCalls
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantMsg})
		case chatmodel.RoleTool:
			for _, p := range m.Parts {
				if tr, ok := p.(chatmodel.ToolResultPart); ok {
					out = append(out, openai.ToolMessage(tr.Content, tr.CallID))
				}
			}
		}
	}
	return out, nil
}

type stream struct {
	raw   *ssestream.Stream[openai.ChatCompletionChunk]
	acc   openai.ChatCompletionAccumulator
	tools []chatmodel.ToolDefinition
}

// resolveToolID looks up the caller-supplied ToolDefinition matching name,
// returning its ToolID. The provider only knows tool names; an unresolved
// name cannot be executed and its call is dropped.
func (s *stream) resolveToolID(name string) (string, bool) {
	for _, t := range s.tools {
		if t.Name == name {
			return t.ToolID, true
		}
	}
	return "", false
}

// Next implements chatmodel.Stream. One OpenAI SSE chunk may carry text,
// a finished tool call (via the accumulator's JustFinishedToolCall), both,
// or neither; a chunk producing no client-visible content is skipped and
// the next raw chunk is read.
func (s *stream) Next(ctx context.Context) (chatmodel.Chunk, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return chatmodel.Chunk{}, false, ctx.Err()
		default:
		}
		if !s.raw.Next() {
			if err := s.raw.Err(); err != nil {
				return chatmodel.Chunk{}, false, chatmodel.NewProviderError("openai", chatmodel.ProviderErrorKindTransport, 0, "", "stream read", err)
			}
			return chatmodel.Chunk{}, false, nil
		}
		chunk := s.raw.Current()
		s.acc.AddChunk(chunk)

		if tool, ok := s.acc.JustFinishedToolCall(); ok {
			if toolID, known := s.resolveToolID(tool.Name); known {
				return chatmodel.Chunk{Type: chatmodel.ChunkToolCalls, ToolCalls: []chatmodel.ToolCall{{
					CallID: tool.ID, ToolID: toolID, ToolName: tool.Name, Parameters: json.RawMessage(tool.Arguments),
				}}}, true, nil
			}
			continue
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			return chatmodel.Chunk{Type: chatmodel.ChunkText, Text: chunk.Choices[0].Delta.Content}, true, nil
		}
		if u := chunk.Usage; u.TotalTokens > 0 {
			in, out := int(u.PromptTokens), int(u.CompletionTokens)
			return chatmodel.Chunk{Type: chatmodel.ChunkUsage, Usage: chatmodel.Usage{
				InputTokens: &in, OutputTokens: &out,
			}}, true, nil
		}
	}
}

// Close implements chatmodel.Stream.
func (s *stream) Close() error { return s.raw.Close() }
