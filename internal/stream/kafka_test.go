// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafkaLogKeysByStreamKey(t *testing.T) {
	log := NewKafkaLog(KafkaDeps{
		Brokers: []string{"localhost:9092"},
		Topic:   "events.ingested",
		GroupID: "dispatch",
	})
	t.Cleanup(func() { _ = log.Close() })

	assert.Equal(t, "events.ingested", log.writer.Topic)
	assert.IsType(t, &kafka.Hash{}, log.writer.Balancer)
	assert.Equal(t, kafka.RequireAll, log.writer.RequiredAcks)

	cfg := log.reader.Config()
	assert.Equal(t, "dispatch", cfg.GroupID)
	assert.Equal(t, "events.ingested", cfg.Topic)
}

func TestKafkaPingWithoutBrokers(t *testing.T) {
	log := &KafkaLog{}
	require.Error(t, log.Ping(context.Background()))
}
