// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T, maxLen int64, consumer string) (*RedisLog, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := NewRedisLog(RedisDeps{
		Client:     client,
		Stream:     "events:test",
		MaxLen:     maxLen,
		Consumer:   consumer,
		BatchSize:  10,
		Block:      20 * time.Millisecond,
		RetryDelay: 5 * time.Millisecond,
	})
	return log, mr
}

func TestNewRedisClientPings(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: addr})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = NewRedisClient(context.Background(), RedisConfig{Addr: addr})
	require.Error(t, err)
}

func TestAppendPreservesInsertionOrder(t *testing.T) {
	log, _ := newTestLog(t, 100, "reader")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, err := log.Append(ctx, "user.signup:web_app", []byte(fmt.Sprintf(`{"n":%d}`, i)))
		require.NoError(t, err)
		require.NotEmpty(t, id)
	}

	entries, err := log.Read(ctx, "", 100)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, "user.signup:web_app", e.StreamKey)
		assert.Equal(t, fmt.Sprintf(`{"n":%d}`, i), string(e.Payload))
	}

	rest, err := log.Read(ctx, entries[2].ID, 100)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, entries[3].ID, rest[0].ID)
}

func TestReadEmptyStream(t *testing.T) {
	log, _ := newTestLog(t, 100, "reader")

	entries, err := log.Read(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAppendTrimsToApproximateBound(t *testing.T) {
	const bound, extra, slack = 20, 30, 10
	log, _ := newTestLog(t, bound, "reader")
	ctx := context.Background()

	for i := 0; i < bound+extra; i++ {
		_, err := log.Append(ctx, "content.view:mobile_app", []byte(fmt.Sprintf("%d", i)))
		require.NoError(t, err)
	}

	n, err := log.Len(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(bound+slack))

	entries, err := log.Read(ctx, "", 1000)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), bound+slack)
	require.NotEmpty(t, entries)
	assert.Equal(t, fmt.Sprintf("%d", bound+extra-1), string(entries[len(entries)-1].Payload))
}

func TestAppendFailsWhenRedisDown(t *testing.T) {
	log, mr := newTestLog(t, 10, "reader")
	mr.Close()

	_, err := log.Append(context.Background(), "k", []byte("x"))
	require.Error(t, err)
}

// collect consumes until want entries have been handled.
func collect(t *testing.T, log *RedisLog, want int, handler Handler) []Entry {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		mu  sync.Mutex
		got []Entry
	)
	done := make(chan error, 1)
	go func() {
		done <- log.Consume(ctx, func(ctx context.Context, e Entry) error {
			if handler != nil {
				if err := handler(ctx, e); err != nil {
					return err
				}
			}
			mu.Lock()
			got = append(got, e)
			if len(got) == want {
				cancel()
			}
			mu.Unlock()
			return nil
		})
	}()

	require.NoError(t, <-done)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, want)
	return got
}

func TestConsumeResumesFromCursor(t *testing.T) {
	log, mr := newTestLog(t, 100, "dispatcher")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := log.Append(ctx, "k", []byte(fmt.Sprintf("%d", i)))
		require.NoError(t, err)
	}

	first := collect(t, log, 3, nil)
	assert.Equal(t, "0", string(first[0].Payload))
	assert.Equal(t, "2", string(first[2].Payload))

	cursor, err := mr.Get("events:test:cursor:dispatcher")
	require.NoError(t, err)
	assert.Equal(t, first[2].ID, cursor)

	_, err = log.Append(ctx, "k", []byte("3"))
	require.NoError(t, err)

	second := collect(t, log, 1, nil)
	assert.Equal(t, "3", string(second[0].Payload))
}

func TestConsumeRedeliversAfterHandlerError(t *testing.T) {
	log, _ := newTestLog(t, 100, "dispatcher")
	ctx := context.Background()

	_, err := log.Append(ctx, "k", []byte("a"))
	require.NoError(t, err)
	_, err = log.Append(ctx, "k", []byte("b"))
	require.NoError(t, err)

	var attempts int
	got := collect(t, log, 2, func(_ context.Context, e Entry) error {
		if string(e.Payload) == "a" {
			attempts++
			if attempts == 1 {
				return errors.New("store not ready")
			}
		}
		return nil
	})

	assert.Equal(t, 2, attempts)
	assert.Equal(t, "a", string(got[0].Payload))
	assert.Equal(t, "b", string(got[1].Payload))
}
