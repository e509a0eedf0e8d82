package eventlog

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fa-sharp/rschat-relay/internal/relayerr"
)

var (
	testRedisClient    redis.UniversalClient
	testRedisContainer testcontainers.Container
	skipRedisTests     bool
)

func setupRedis() {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		}
		testRedisContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if containerErr != nil {
		fmt.Printf("Docker not available, Redis tests will be skipped: %v\n", containerErr)
		skipRedisTests = true
		return
	}

	host, err := testRedisContainer.Host(ctx)
	if err != nil {
		skipRedisTests = true
		return
	}
	port, err := testRedisContainer.MappedPort(ctx, "6379")
	if err != nil {
		skipRedisTests = true
		return
	}

	testRedisClient = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	if err := testRedisClient.Ping(ctx).Err(); err != nil {
		skipRedisTests = true
	}
}

func getRedisLog(t *testing.T) *RedisLog {
	t.Helper()
	if testRedisClient == nil && !skipRedisTests {
		setupRedis()
	}
	if skipRedisTests {
		t.Skip("Docker not available, skipping Redis test")
	}
	return NewRedisLog(testRedisClient)
}

func TestRedisLog_CreateRejectsDuplicateKey(t *testing.T) {
	log := getRedisLog(t)
	ctx := context.Background()
	key := t.Name()
	defer func() { _ = log.Delete(ctx, key) }()

	require.NoError(t, log.Create(ctx, key, 30))
	err := log.Create(ctx, key, 30)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRedisLog_AppendThenReadRange(t *testing.T) {
	log := getRedisLog(t)
	ctx := context.Background()
	key := t.Name()
	defer func() { _ = log.Delete(ctx, key) }()

	require.NoError(t, log.Create(ctx, key, 30))
	entries := []Entry{
		{Type: TypeText, Data: "hello "},
		{Type: TypeText, Data: "world"},
	}
	require.NoError(t, log.Append(ctx, key, entries, 30, 500))

	stored, err := log.ReadRange(ctx, key, "0-0")
	require.NoError(t, err)
	require.Len(t, stored, 3) // the "start" entry from Create, plus the two appended
	assert.Equal(t, TypeStart, stored[0].Type)
	assert.Equal(t, "hello ", stored[1].Data)
	assert.Equal(t, "world", stored[2].Data)
}

func TestRedisLog_AppendAfterDeleteReportsLogMissing(t *testing.T) {
	log := getRedisLog(t)
	ctx := context.Background()
	key := t.Name()

	require.NoError(t, log.Create(ctx, key, 30))
	require.NoError(t, log.Delete(ctx, key))

	err := log.Append(ctx, key, []Entry{{Type: TypeText, Data: "x"}}, 30, 500)
	require.Error(t, err)
	assert.ErrorIs(t, err, relayerr.LogMissing)
}

func TestRedisLog_TailReturnsNilOnBlockTimeout(t *testing.T) {
	log := getRedisLog(t)
	ctx := context.Background()
	key := t.Name()
	defer func() { _ = log.Delete(ctx, key) }()

	require.NoError(t, log.Create(ctx, key, 30))
	entries, err := log.ReadRange(ctx, key, "0-0")
	require.NoError(t, err)
	last := entries[len(entries)-1].ID

	entry, err := log.Tail(ctx, key, last, 200)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRedisLog_ScanKeysFiltersByPrefix(t *testing.T) {
	log := getRedisLog(t)
	ctx := context.Background()
	prefix := "scan-test:" + t.Name() + ":"
	keyA, keyB := prefix+"a", prefix+"b"
	defer func() { _ = log.Delete(ctx, keyA); _ = log.Delete(ctx, keyB) }()

	require.NoError(t, log.Create(ctx, keyA, 30))
	require.NoError(t, log.Create(ctx, keyB, 30))

	keys, err := log.ScanKeys(ctx, prefix, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{keyA, keyB}, keys)
}
