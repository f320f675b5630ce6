// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	kafkaMinBytes = 10_000
	kafkaMaxBytes = 10_000_000
)

type KafkaDeps struct {
	Brokers    []string
	Topic      string
	GroupID    string
	Logger     *slog.Logger
	RetryDelay time.Duration
}

// KafkaLog is a Stream Log backed by a Kafka topic. Messages are keyed by
// stream key so one key stays on one partition. The length bound is the
// topic's retention policy.
type KafkaLog struct {
	brokers    []string
	writer     *kafka.Writer
	reader     *kafka.Reader
	logger     *slog.Logger
	retryDelay time.Duration
}

func NewKafkaLog(deps KafkaDeps) *KafkaLog {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}

	retry := deps.RetryDelay
	if retry <= 0 {
		retry = time.Second
	}

	return &KafkaLog{
		brokers:    deps.Brokers,
		writer:     newKafkaWriter(deps.Brokers, deps.Topic),
		reader:     newKafkaReader(deps.Brokers, deps.Topic, deps.GroupID),
		logger:     l,
		retryDelay: retry,
	}
}

func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           5 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func newKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: kafkaMinBytes,
		MaxBytes: kafkaMaxBytes,
		MaxWait:  250 * time.Millisecond,
	})
}

// Append writes synchronously. Kafka assigns offsets on the broker, so the
// returned id is empty.
func (k *KafkaLog) Append(ctx context.Context, streamKey string, payload []byte) (string, error) {
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(streamKey),
		Value: payload,
	})
	if err != nil {
		return "", fmt.Errorf("kafka write %s: %w", k.writer.Topic, err)
	}
	return "", nil
}

// Consume fetches messages for the consumer group and commits each one after
// the handler succeeds. A failing handler is retried until ctx is cancelled.
func (k *KafkaLog) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}

		entry := Entry{
			ID:        fmt.Sprintf("%d-%d", msg.Partition, msg.Offset),
			StreamKey: string(msg.Key),
			Payload:   msg.Value,
		}

		for {
			err := handler(ctx, entry)
			if err == nil {
				break
			}
			k.logger.Warn("stream entry handler failed",
				"topic", msg.Topic,
				"entry_id", entry.ID,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(k.retryDelay):
			}
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka commit: %w", err)
		}
	}
}

func (k *KafkaLog) Ping(ctx context.Context) error {
	if len(k.brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	return conn.Close()
}

func (k *KafkaLog) Close() error {
	return errors.Join(k.writer.Close(), k.reader.Close())
}

var _ Log = (*KafkaLog)(nil)
