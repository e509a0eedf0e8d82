// Package anthropic implements chatmodel.Adapter for the Anthropic Messages
// streaming API, grounded on features/model/anthropic/stream.go (the event
// switch/tool-buffer accumulation pattern) and client.go (request encoding).
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/fa-sharp/rschat-relay/internal/chatmodel"
)

// Adapter implements chatmodel.Adapter against the Anthropic Messages API.
type Adapter struct {
	client sdk.Client
	model  string
}

// New constructs an Adapter. apiKey authenticates the client; model is the
// default model identifier used when Options.Model is empty.
func New(apiKey, model string) *Adapter {
	return &Adapter{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// ChatStream implements chatmodel.Adapter.
func (a *Adapter) ChatStream(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition, opts chatmodel.Options) (chatmodel.Stream, error) {
	params, err := a.buildParams(messages, tools, opts)
	if err != nil {
		return nil, chatmodel.NewProviderError("anthropic", chatmodel.ProviderErrorKindDecode, 0, "", "encode request", err)
	}
	raw := a.client.Messages.NewStreaming(ctx, *params)
	return newStream(raw, tools), nil
}

func (a *Adapter) buildParams(messages []chatmodel.Message, tools []chatmodel.ToolDefinition, opts chatmodel.Options) (*sdk.MessageNewParams, error) {
	model := opts.Model
	if model == "" {
		model = a.model
	}
	if model == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	maxTokens := int64(4096)
	if opts.MaxTokens != nil && *opts.MaxTokens > 0 {
		maxTokens = int64(*opts.MaxTokens)
	}

	var system []sdk.TextBlockParam
	msgs := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.IsEmpty() {
			continue
		}
		if m.Role == chatmodel.RoleSystem {
			for _, p := range m.Parts {
				if tp, ok := p.(chatmodel.TextPart); ok && tp.Text != "" {
					system = append(system, sdk.TextBlockParam{Text: tp.Text})
				}
			}
			continue
		}
		blocks, err := encodeParts(m.Parts)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		role := sdk.MessageParamRoleUser
		if m.Role == chatmodel.RoleAssistant {
			role = sdk.MessageParamRoleAssistant
		}
		msgs = append(msgs, sdk.MessageParam{Role: role, Content: blocks})
	}

	params := sdk.MessageNewParams{
		MaxTokens: maxTokens,
		Messages:  msgs,
		Model:     sdk.Model(model),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = encodeTools(tools)
	}
	if opts.Temperature != nil {
		params.Temperature = sdk.Float(*opts.Temperature)
	}
	return &params, nil
}

func encodeParts(parts []chatmodel.Part) ([]sdk.ContentBlockParamUnion, error) {
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case chatmodel.TextPart:
			if v.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(v.Text))
			}
		case chatmodel.ToolUsePart:
			var input any
			if len(v.Parameters) > 0 {
				input = v.Parameters
			} else {
				input = map[string]any{}
			}
			blocks = append(blocks, sdk.NewToolUseBlock(v.CallID, input, v.ToolName))
		case chatmodel.ToolResultPart:
			blocks = append(blocks, sdk.NewToolResultBlock(v.CallID, v.Content, v.IsError))
		default:
			return nil, fmt.Errorf("anthropic: unsupported part type %T", p)
		}
	}
	return blocks, nil
}

func encodeTools(tools []chatmodel.ToolDefinition) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		tool := sdk.ToolParam{
			Name:        t.Name,
			Description: sdk.String(t.Description),
		}
		if len(t.InputSchema) > 0 {
			_ = tool.InputSchema.UnmarshalJSON(t.InputSchema)
		}
		out = append(out, sdk.ToolUnionParam{OfTool: &tool})
	}
	return out
}

type stream struct {
	raw         *ssestream.Stream[sdk.MessageStreamEventUnion]
	toolBuffers map[int]*toolBuffer
	tools       []chatmodel.ToolDefinition
}

type toolBuffer struct {
	id, name string
	json     strings.Builder
}

func newStream(raw *ssestream.Stream[sdk.MessageStreamEventUnion], tools []chatmodel.ToolDefinition) *stream {
	return &stream{raw: raw, toolBuffers: make(map[int]*toolBuffer), tools: tools}
}

// resolveToolID looks up the caller-supplied ToolDefinition matching name,
// returning its ToolID. The provider only knows tool names; callers key tool
// configuration by a stable ToolID, so an unresolved name cannot be executed
// and its call is dropped.
func (s *stream) resolveToolID(name string) (string, bool) {
	for _, t := range s.tools {
		if t.Name == name {
			return t.ToolID, true
		}
	}
	return "", false
}

// Next implements chatmodel.Stream by translating one or more Anthropic SSE
// events into a single normalized Chunk, looping internally past events that
// carry no client-visible content (message_start, content_block_start for
// text blocks, content_block_stop for text blocks).
func (s *stream) Next(ctx context.Context) (chatmodel.Chunk, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return chatmodel.Chunk{}, false, ctx.Err()
		default:
		}
		if !s.raw.Next() {
			if err := s.raw.Err(); err != nil {
				return chatmodel.Chunk{}, false, chatmodel.NewProviderError("anthropic", chatmodel.ProviderErrorKindTransport, 0, "", "stream read", err)
			}
			return chatmodel.Chunk{}, false, nil
		}
		chunk, emit := s.handle(s.raw.Current())
		if emit {
			return chunk, true, nil
		}
	}
}

func (s *stream) handle(event sdk.MessageStreamEventUnion) (chatmodel.Chunk, bool) {
	switch ev := event.AsAny().(type) {
	case sdk.ContentBlockStartEvent:
		idx := int(ev.Index)
		if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
			s.toolBuffers[idx] = &toolBuffer{id: toolUse.ID, name: toolUse.Name}
			return chatmodel.Chunk{Type: chatmodel.ChunkPendingToolCall,
				PendingToolCall: &chatmodel.PendingToolCall{Index: idx, ToolName: toolUse.Name}}, true
		}
		return chatmodel.Chunk{}, false
	case sdk.ContentBlockDeltaEvent:
		idx := int(ev.Index)
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if delta.Text == "" {
				return chatmodel.Chunk{}, false
			}
			return chatmodel.Chunk{Type: chatmodel.ChunkText, Text: delta.Text}, true
		case sdk.InputJSONDelta:
			if tb := s.toolBuffers[idx]; tb != nil {
				tb.json.WriteString(delta.PartialJSON)
			}
			return chatmodel.Chunk{}, false
		default:
			return chatmodel.Chunk{}, false
		}
	case sdk.ContentBlockStopEvent:
		idx := int(ev.Index)
		tb, ok := s.toolBuffers[idx]
		if !ok {
			return chatmodel.Chunk{}, false
		}
		delete(s.toolBuffers, idx)
		toolID, ok := s.resolveToolID(tb.name)
		if !ok {
			return chatmodel.Chunk{}, false
		}
		raw := tb.json.String()
		if strings.TrimSpace(raw) == "" {
			raw = "{}"
		}
		return chatmodel.Chunk{Type: chatmodel.ChunkToolCalls, ToolCalls: []chatmodel.ToolCall{{
			CallID: tb.id, ToolID: toolID, ToolName: tb.name, Parameters: []byte(raw),
		}}}, true
	case sdk.MessageDeltaEvent:
		in := int(ev.Usage.InputTokens)
		out := int(ev.Usage.OutputTokens)
		return chatmodel.Chunk{Type: chatmodel.ChunkUsage, Usage: chatmodel.Usage{
			InputTokens: &in, OutputTokens: &out,
		}}, true
	default:
		return chatmodel.Chunk{}, false
	}
}

// Close implements chatmodel.Stream.
func (s *stream) Close() error { return s.raw.Close() }
