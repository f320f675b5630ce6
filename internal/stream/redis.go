// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldStreamKey = "stream_key"
	fieldEvent     = "event"

	startID = "0"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

type RedisDeps struct {
	Client     *redis.Client
	Logger     *slog.Logger
	Stream     string
	MaxLen     int64
	Consumer   string
	BatchSize  int64
	Block      time.Duration
	RetryDelay time.Duration
}

// RedisLog is a Stream Log backed by a Redis stream. Appends trim with
// MAXLEN ~ so the length bound is approximate.
type RedisLog struct {
	client     *redis.Client
	logger     *slog.Logger
	stream     string
	maxLen     int64
	consumer   string
	batchSize  int64
	block      time.Duration
	retryDelay time.Duration
}

func NewRedisLog(deps RedisDeps) *RedisLog {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}

	consumer := deps.Consumer
	if consumer == "" {
		consumer = "default"
	}

	batch := deps.BatchSize
	if batch <= 0 {
		batch = 100
	}

	block := deps.Block
	if block <= 0 {
		block = 2 * time.Second
	}

	retry := deps.RetryDelay
	if retry <= 0 {
		retry = time.Second
	}

	return &RedisLog{
		client:     deps.Client,
		logger:     l,
		stream:     deps.Stream,
		maxLen:     deps.MaxLen,
		consumer:   consumer,
		batchSize:  batch,
		block:      block,
		retryDelay: retry,
	}
}

func (r *RedisLog) Append(ctx context.Context, streamKey string, payload []byte) (string, error) {
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			fieldStreamKey: streamKey,
			fieldEvent:     payload,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	id, err := r.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return id, nil
}

// Read returns up to count entries strictly after the given entry id without
// blocking. An empty after reads from the start of the log.
func (r *RedisLog) Read(ctx context.Context, after string, count int64) ([]Entry, error) {
	if after == "" {
		after = startID
	}
	return r.read(ctx, after, count, -1)
}

func (r *RedisLog) Len(ctx context.Context) (int64, error) {
	n, err := r.client.XLen(ctx, r.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("xlen %s: %w", r.stream, err)
	}
	return n, nil
}

// Consume delivers entries in insertion order until ctx is cancelled. The
// consumer's cursor lives in Redis and only moves past an entry once the
// handler has returned nil for it.
func (r *RedisLog) Consume(ctx context.Context, handler Handler) error {
	r.logger.Info("stream consumer started",
		"stream", r.stream,
		"consumer", r.consumer,
	)

	for {
		if ctx.Err() != nil {
			return nil
		}

		cursor, err := r.cursor(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("load stream cursor failed", "stream", r.stream, "error", err)
			if !r.sleep(ctx) {
				return nil
			}
			continue
		}

		entries, err := r.read(ctx, cursor, r.batchSize, r.block)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("read stream failed", "stream", r.stream, "error", err)
			if !r.sleep(ctx) {
				return nil
			}
			continue
		}

		for _, entry := range entries {
			if err := handler(ctx, entry); err != nil {
				r.logger.Warn("stream entry handler failed",
					"stream", r.stream,
					"entry_id", entry.ID,
					"error", err,
				)
				if !r.sleep(ctx) {
					return nil
				}
				break
			}
			if err := r.client.Set(context.WithoutCancel(ctx), r.cursorKey(), entry.ID, 0).Err(); err != nil {
				r.logger.Error("advance stream cursor failed",
					"stream", r.stream,
					"entry_id", entry.ID,
					"error", err,
				)
				if !r.sleep(ctx) {
					return nil
				}
				break
			}
		}
	}
}

func (r *RedisLog) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisLog) Close() error {
	return r.client.Close()
}

func (r *RedisLog) cursorKey() string {
	return r.stream + ":cursor:" + r.consumer
}

func (r *RedisLog) cursor(ctx context.Context) (string, error) {
	id, err := r.client.Get(ctx, r.cursorKey()).Result()
	if errors.Is(err, redis.Nil) {
		return startID, nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *RedisLog) read(ctx context.Context, after string, count int64, block time.Duration) ([]Entry, error) {
	res, err := r.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{r.stream, after},
		Count:   count,
		Block:   block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xread %s: %w", r.stream, err)
	}

	var out []Entry
	for _, s := range res {
		for _, msg := range s.Messages {
			out = append(out, toEntry(msg))
		}
	}
	return out, nil
}

func (r *RedisLog) sleep(ctx context.Context) bool {
	t := time.NewTimer(r.retryDelay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func toEntry(msg redis.XMessage) Entry {
	e := Entry{ID: msg.ID}
	if v, ok := msg.Values[fieldStreamKey].(string); ok {
		e.StreamKey = v
	}
	if v, ok := msg.Values[fieldEvent].(string); ok {
		e.Payload = []byte(v)
	}
	return e
}

var _ Log = (*RedisLog)(nil)
