// Package systeminfo implements the system info tool: it reports
// process/runtime information with no external dependency, grounded on
// original_source's tools/system/system_info.rs. A legitimate
// standard-library case: the original is itself a thin OS-introspection
// shim with no ecosystem library involved.
package systeminfo

import (
	"context"
	"encoding/json"
	"runtime"
	"time"

	"github.com/fa-sharp/rschat-relay/internal/toolexec"
)

// Tool reports runtime.NumGoroutine, GOOS/GOARCH, and process uptime.
type Tool struct {
	startedAt time.Time
}

// New constructs a Tool whose uptime is measured from process start.
func New(startedAt time.Time) *Tool {
	return &Tool{startedAt: startedAt}
}

type report struct {
	GOOS       string `json:"goos"`
	GOARCH     string `json:"goarch"`
	NumCPU     int    `json:"num_cpu"`
	Goroutines int    `json:"goroutines"`
	UptimeSecs int64  `json:"uptime_seconds"`
}

// ValidateAndExecute implements toolexec.Tool. It ignores its params entirely
// since this tool takes no arguments.
func (t *Tool) ValidateAndExecute(ctx context.Context, _ json.RawMessage, sink toolexec.Sink) (bool, error) {
	r := report{
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
		NumCPU:     runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
		UptimeSecs: int64(time.Since(t.startedAt).Seconds()),
	}
	encoded, err := json.Marshal(r)
	if err != nil {
		return true, err
	}
	_ = sink.Send(ctx, toolexec.LogEvent{Kind: toolexec.KindResult, Text: string(encoded)})
	return false, nil
}
