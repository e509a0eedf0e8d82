// Package sseutil provides the shared line-oriented decoders used by the
// upstream adapters that do not bring their own streaming SDK: a
// Server-Sent-Events Scanner and a sibling JSONLScanner for providers (like
// Ollama) whose stream is newline-delimited JSON rather than SSE.
package sseutil

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// DoneMarker is the sentinel SSE payload providers send before closing the
// stream, signaling end-of-stream rather than a frame to decode.
const DoneMarker = "[DONE]"

// Frame is one decoded SSE event: an optional event name and its data
// payload (which may itself span multiple "data:" lines, newline-joined).
type Frame struct {
	Event string
	Data  []byte
}

// Scanner reads Server-Sent-Events frames off a provider's streaming HTTP
// response body, grounded on the line-reading loop in
// runtime/mcp/ssecaller.go's readSSEEvent, generalized into a reusable type.
type Scanner struct {
	r *bufio.Reader
}

// NewScanner wraps r for SSE frame decoding.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r)}
}

// Next reads the next frame. It returns io.EOF once the stream ends, and
// reports done=true for the [DONE] sentinel (with an empty Frame).
func (s *Scanner) Next() (frame Frame, done bool, err error) {
	var event string
	var data []byte
	for {
		line, readErr := s.r.ReadString('\n')
		if readErr != nil {
			if len(line) == 0 {
				return Frame{}, false, readErr
			}
			// last partial line before EOF: treat it like a normal line; the
			// next read then returns EOF, and a frame left without its closing
			// blank line is not returned.
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			if event == "" && len(data) == 0 {
				if readErr != nil {
					return Frame{}, false, readErr
				}
				continue
			}
			if strings.TrimSpace(string(data)) == DoneMarker {
				return Frame{}, true, nil
			}
			return Frame{Event: event, Data: data}, false, nil
		}
		if strings.HasPrefix(trimmed, ":") {
			continue
		}
		if after, ok := strings.CutPrefix(trimmed, "event:"); ok {
			event = strings.TrimSpace(after)
			continue
		}
		if after, ok := strings.CutPrefix(trimmed, "data:"); ok {
			chunk := strings.TrimPrefix(after, " ")
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, chunk...)
			continue
		}
		if readErr != nil {
			return Frame{}, false, readErr
		}
	}
}

// JSONLScanner reads newline-delimited JSON objects, one per Next call,
// used by providers (Ollama) whose stream protocol is plain JSONL rather
// than SSE.
type JSONLScanner struct {
	r *bufio.Reader
}

// NewJSONLScanner wraps r for line-at-a-time JSON decoding.
func NewJSONLScanner(r io.Reader) *JSONLScanner {
	return &JSONLScanner{r: bufio.NewReader(r)}
}

// Next returns the next non-blank line's raw bytes, or io.EOF when exhausted.
func (s *JSONLScanner) Next() ([]byte, error) {
	for {
		line, err := s.r.ReadString('\n')
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return []byte(trimmed), nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
	}
}
