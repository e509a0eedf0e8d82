package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fa-sharp/rschat-relay/internal/chatmodel"
)

func TestAdapter_ChatStream_TextThenUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"message":{"content":"hel"},"done":false}` + "\n"))
		_, _ = w.Write([]byte(`{"message":{"content":"lo"},"done":false}` + "\n"))
		_, _ = w.Write([]byte(`{"message":{"content":""},"done":true,"prompt_eval_count":3,"eval_count":2}` + "\n"))
	}))
	defer srv.Close()

	adapter := New(srv.Client(), srv.URL, "llama3")
	stream, err := adapter.ChatStream(context.Background(), []chatmodel.Message{
		{Role: chatmodel.RoleUser, Parts: []chatmodel.Part{chatmodel.TextPart{Text: "hi"}}},
	}, nil, chatmodel.Options{})
	require.NoError(t, err)
	defer stream.Close()

	c1, ok, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, chatmodel.ChunkText, c1.Type)
	assert.Equal(t, "hel", c1.Text)

	c2, ok, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lo", c2.Text)

	c3, ok, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, chatmodel.ChunkUsage, c3.Type)
	assert.Equal(t, 3, *c3.Usage.InputTokens)
	assert.Equal(t, 2, *c3.Usage.OutputTokens)

	_, ok, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdapter_ChatStream_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	adapter := New(srv.Client(), srv.URL, "llama3")
	_, err := adapter.ChatStream(context.Background(), nil, nil, chatmodel.Options{})
	require.Error(t, err)
	pe, ok := chatmodel.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, chatmodel.ProviderErrorKindHTTPStatus, pe.Kind)
	assert.Equal(t, http.StatusBadGateway, pe.HTTP)
}
