// Package codeexec implements the code execution tool: it runs a submitted
// snippet in an ephemeral container, grounded on
// original_source's tools/code_executor/docker.rs. testcontainers-go
// (already used for the Redis event log's integration tests) is repurposed here as
// the sandboxing primitive, since it already provides lifecycle and
// log-streaming helpers matching the dual-sink pattern, rather than a raw
// docker/docker client.
package codeexec

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fa-sharp/rschat-relay/internal/relayerr"
	"github.com/fa-sharp/rschat-relay/internal/toolexec"
	"github.com/fa-sharp/rschat-relay/internal/tools"
)

// ParamSchema is the JSON Schema parameters must satisfy.
const ParamSchema = `{
  "type": "object",
  "required": ["language", "code"],
  "properties": {
    "language": {"type": "string", "enum": ["python", "node", "bash"]},
    "code": {"type": "string"}
  }
}`

var images = map[string]string{
	"python": "python:3.12-slim",
	"node":   "node:22-slim",
	"bash":   "bash:5",
}

var commands = map[string][]string{
	"python": {"python3", "-c"},
	"node":   {"node", "-e"},
	"bash":   {"bash", "-c"},
}

type execParams struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Tool runs one snippet per call inside a fresh, removed-on-exit container.
type Tool struct {
	Timeout time.Duration
}

// New constructs a Tool with the given per-execution timeout.
func New(timeout time.Duration) *Tool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Tool{Timeout: timeout}
}

// ValidateAndExecute implements toolexec.Tool.
func (t *Tool) ValidateAndExecute(ctx context.Context, raw json.RawMessage, sink toolexec.Sink) (bool, error) {
	if err := tools.ValidateParams(json.RawMessage(ParamSchema), raw); err != nil {
		return true, err
	}
	var p execParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return true, relayerr.Wrap(relayerr.InvalidParameters, "unmarshal parameters", err)
	}
	image, ok := images[p.Language]
	if !ok {
		return true, relayerr.New(relayerr.InvalidParameters, "unsupported language "+p.Language)
	}

	runCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	cmd := append(append([]string{}, commands[p.Language]...), p.Code)
	req := testcontainers.ContainerRequest{
		Image:      image,
		Cmd:        cmd,
		WaitingFor: wait.ForExit(),
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.NetworkMode = "none"
			hc.Resources = container.Resources{Memory: 256 * 1024 * 1024}
		},
	}

	runningContainer, err := testcontainers.GenericContainer(runCtx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		_ = sink.Send(ctx, toolexec.LogEvent{Kind: toolexec.KindError, Text: "container failed to start: " + err.Error()})
		return true, relayerr.Wrap(relayerr.ToolExecution, "start container", err)
	}
	defer func() { _ = runningContainer.Terminate(context.Background()) }()

	go t.streamCancellation(runCtx, runningContainer, sink)

	logsReader, err := runningContainer.Logs(runCtx)
	if err == nil {
		defer logsReader.Close()
		buf := make([]byte, 4096)
		for {
			n, readErr := logsReader.Read(buf)
			if n > 0 {
				_ = sink.Send(ctx, toolexec.LogEvent{Kind: toolexec.KindLog, Text: string(buf[:n])})
			}
			if readErr != nil {
				break
			}
		}
	}

	state, err := runningContainer.State(runCtx)
	if err != nil {
		return true, relayerr.Wrap(relayerr.ToolExecution, "read container state", err)
	}

	isError := state.ExitCode != 0
	result := fmt.Sprintf("exit code %d", state.ExitCode)
	kind := toolexec.KindResult
	if isError {
		kind = toolexec.KindError
	}
	_ = sink.Send(ctx, toolexec.LogEvent{Kind: kind, Text: result})
	return isError, nil
}

// streamCancellation stops the container promptly if the primary sink
// closes (client disconnect), honoring the cooperative-cancellation
// contract for long sub-operations.
func (t *Tool) streamCancellation(ctx context.Context, c testcontainers.Container, sink toolexec.Sink) {
	select {
	case <-sink.Closed():
		_ = c.Stop(context.Background(), nil)
	case <-ctx.Done():
	}
}
