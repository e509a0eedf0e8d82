package eventlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fa-sharp/rschat-relay/internal/relayerr"
)

// createScript atomically creates a stream only if the key is absent,
// writing the start entry and setting the initial TTL in one round trip.
// Redis executes Lua scripts single-threaded, so this closes the
// check-then-act race a bare EXISTS+XADD pair would have, giving Create its
// "fail if present" guarantee without an auxiliary NX lock key.
const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("XADD", KEYS[1], "*", "type", ARGV[1], "data", "")
redis.call("EXPIRE", KEYS[1], ARGV[2])
return 1
`

// RedisLog implements Log against Redis streams, grounded on the XADD /
// XREAD BLOCK / EXPIRE / SCAN primitives named in the log substrate
// contract (spec §6).
type RedisLog struct {
	rdb    redis.UniversalClient
	script *redis.Script
}

// NewRedisLog constructs a RedisLog over an existing client/cluster client.
func NewRedisLog(rdb redis.UniversalClient) *RedisLog {
	return &RedisLog{rdb: rdb, script: redis.NewScript(createScript)}
}

func (l *RedisLog) Create(ctx context.Context, key string, ttlSeconds int64) error {
	res, err := l.script.Run(ctx, l.rdb, []string{key}, string(TypeStart), ttlSeconds).Int()
	if err != nil {
		return fmt.Errorf("eventlog: create %q: %w", key, err)
	}
	if res == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (l *RedisLog) Exists(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("eventlog: exists %q: %w", key, err)
	}
	return n > 0, nil
}

func (l *RedisLog) Append(ctx context.Context, key string, entries []Entry, ttlSeconds int64, maxLen int64) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := l.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(entries))
	for i, e := range entries {
		cmds[i] = pipe.XAdd(ctx, &redis.XAddArgs{
			Stream:     key,
			NoMkStream: true,
			MaxLen:     maxLen,
			Approx:     true,
			ID:         "*",
			Values:     map[string]any{"type": string(e.Type), "data": e.Data},
		})
	}
	expireCmd := pipe.Expire(ctx, key, secondsToDuration(ttlSeconds))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("eventlog: append %q: %w", key, err)
	}
	// NOMKSTREAM makes XAdd return redis.Nil when the key was deleted
	// concurrently; any such response means the log is gone under us.
	for _, cmd := range cmds {
		if _, err := cmd.Result(); errors.Is(err, redis.Nil) {
			return relayerr.Wrap(relayerr.LogMissing, "log deleted during append", err)
		} else if err != nil {
			return fmt.Errorf("eventlog: append %q: %w", key, err)
		}
	}
	if err := expireCmd.Err(); err != nil {
		return fmt.Errorf("eventlog: refresh ttl %q: %w", key, err)
	}
	return nil
}

func (l *RedisLog) AppendTerminal(ctx context.Context, key string, entry Entry) error {
	pipe := l.rdb.Pipeline()
	addCmd := pipe.XAdd(ctx, &redis.XAddArgs{
		Stream:     key,
		NoMkStream: true,
		ID:         "*",
		Values:     map[string]any{"type": string(entry.Type), "data": entry.Data},
	})
	delCmd := pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("eventlog: append_terminal %q: %w", key, err)
	}
	if _, err := addCmd.Result(); errors.Is(err, redis.Nil) {
		return relayerr.Wrap(relayerr.LogMissing, "log already gone", err)
	} else if err != nil {
		return fmt.Errorf("eventlog: append_terminal %q: %w", key, err)
	}
	return delCmd.Err()
}

func (l *RedisLog) Delete(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("eventlog: delete %q: %w", key, err)
	}
	return nil
}

func (l *RedisLog) ReadRange(ctx context.Context, key, fromID string) ([]StoredEntry, error) {
	msgs, err := l.rdb.XRangeN(ctx, key, exclusive(fromID), "+", 1<<20).Result()
	if err != nil {
		return nil, fmt.Errorf("eventlog: read_range %q: %w", key, err)
	}
	if len(msgs) == 0 && fromID == "0-0" {
		exists, existsErr := l.Exists(ctx, key)
		if existsErr == nil && !exists {
			return nil, relayerr.New(relayerr.LogMissing, "log does not exist")
		}
	}
	return toStoredEntries(msgs), nil
}

func (l *RedisLog) Tail(ctx context.Context, key, fromID string, blockMs int64) (*StoredEntry, error) {
	streams, err := l.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{key, fromID},
		Count:   1,
		Block:   msToDuration(blockMs),
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // timeout, no new entry
	}
	if err != nil {
		return nil, fmt.Errorf("eventlog: tail %q: %w", key, err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	entries := toStoredEntries(streams[0].Messages)
	return &entries[0], nil
}

func (l *RedisLog) ScanKeys(ctx context.Context, prefix string, limit int64) ([]string, error) {
	var keys []string
	var cursor uint64
	pattern := prefix + "*"
	for {
		batch, next, err := l.rdb.Scan(ctx, cursor, pattern, 20).Result()
		if err != nil {
			return nil, fmt.Errorf("eventlog: scan_keys %q: %w", prefix, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 || int64(len(keys)) >= limit {
			break
		}
	}
	if int64(len(keys)) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

func toStoredEntries(msgs []redis.XMessage) []StoredEntry {
	out := make([]StoredEntry, len(msgs))
	for i, m := range msgs {
		out[i] = StoredEntry{
			ID: m.ID,
			Entry: Entry{
				Type: EntryType(fmt.Sprint(m.Values["type"])),
				Data: fmt.Sprint(m.Values["data"]),
			},
		}
	}
	return out
}

// exclusive turns a cursor ID into the exclusive-lower-bound form XRANGE
// expects ("(id"), except for the sentinel "0-0" which already means "from
// the beginning" and must stay inclusive.
func exclusive(id string) string {
	if id == "0-0" {
		return id
	}
	return "(" + id
}
