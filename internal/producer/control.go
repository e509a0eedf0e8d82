package producer

import (
	"context"
	"strings"

	"github.com/fa-sharp/rschat-relay/internal/eventlog"
)

// Exists reports whether a stream is currently active at key.
func Exists(ctx context.Context, log eventlog.Log, key string) (bool, error) {
	return log.Exists(ctx, key)
}

// Cancel requests cancellation of the stream at key from outside the
// producer's own goroutine (the POST /chat/{sessionID}/cancel handler). It appends a
// cancel entry and deletes the log; the producer's own Run loop observes
// this as a LogMissing error on its next Append and unwinds.
func Cancel(ctx context.Context, log eventlog.Log, key string) error {
	return log.AppendTerminal(ctx, key, eventlog.Entry{Type: eventlog.TypeCancel})
}

// ListActiveSessionIDs returns the session IDs with an active stream for the
// given key prefix, stripping the prefix from each matching key.
func ListActiveSessionIDs(ctx context.Context, log eventlog.Log, prefix string, limit int64) ([]string, error) {
	keys, err := log.ScanKeys(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := strings.CutPrefix(k, prefix); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
