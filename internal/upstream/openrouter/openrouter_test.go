package openrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fa-sharp/rschat-relay/internal/chatmodel"
)

func writeSSE(w http.ResponseWriter, data string) {
	_, _ = w.Write([]byte("data: " + data + "\n\n"))
	w.(http.Flusher).Flush()
}

func TestAdapter_ChatStream_TextAndToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(w, `{"choices":[{"delta":{"content":"hi"}}]}`)
		writeSSE(w, `{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"search","arguments":"{\"q\":"}}]}}]}`)
		writeSSE(w, `{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"go\"}"}}]}},"finish_reason":"tool_calls"}]}`)
		writeSSE(w, `[DONE]`)
	}))
	defer srv.Close()

	adapter := New(srv.Client(), "test-key", srv.URL, "some/model")
	stream, err := adapter.ChatStream(context.Background(), []chatmodel.Message{
		{Role: chatmodel.RoleUser, Parts: []chatmodel.Part{chatmodel.TextPart{Text: "hi"}}},
	}, []chatmodel.ToolDefinition{{ToolID: "tool-1", Name: "search"}}, chatmodel.Options{})
	require.NoError(t, err)
	defer stream.Close()

	c1, ok, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, chatmodel.ChunkText, c1.Type)
	assert.Equal(t, "hi", c1.Text)

	c2, ok, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, chatmodel.ChunkToolCalls, c2.Type)
	require.Len(t, c2.ToolCalls, 1)
	assert.Equal(t, "search", c2.ToolCalls[0].ToolName)
	assert.JSONEq(t, `{"q":"go"}`, string(c2.ToolCalls[0].Parameters))

	_, ok, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
