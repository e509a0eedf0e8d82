package sseutil

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanner_DecodesFramesAndDone(t *testing.T) {
	input := "event: message_start\ndata: {\"a\":1}\n\n" +
		"data: {\"b\":2}\n" +
		"data: more\n\n" +
		"data: [DONE]\n\n"
	s := NewScanner(strings.NewReader(input))

	f1, done, err := s.Next()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "message_start", f1.Event)
	assert.Equal(t, `{"a":1}`, string(f1.Data))

	f2, done, err := s.Next()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "{\"b\":2}\nmore", string(f2.Data))

	_, done, err = s.Next()
	require.NoError(t, err)
	assert.True(t, done)
}

func TestScanner_SkipsComments(t *testing.T) {
	input := ":keepalive\ndata: {\"x\":1}\n\n"
	s := NewScanner(strings.NewReader(input))
	f, done, err := s.Next()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, `{"x":1}`, string(f.Data))
}

func TestJSONLScanner_SkipsBlankLines(t *testing.T) {
	input := "{\"a\":1}\n\n{\"b\":2}\n"
	s := NewJSONLScanner(strings.NewReader(input))

	line1, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(line1))

	line2, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(line2))

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}
