// SPDX-License-Identifier: Apache-2.0

// Package stream implements the bounded, insertion-ordered log that ingested
// events are appended to before they reach the event store.
package stream

import "context"

// Entry is one record read back from the log.
type Entry struct {
	ID        string
	StreamKey string
	Payload   []byte
}

// Handler processes one entry. A non-nil error leaves the entry unacknowledged
// and it is delivered again.
type Handler func(ctx context.Context, entry Entry) error

type Appender interface {
	Append(ctx context.Context, streamKey string, payload []byte) (string, error)
}

type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
}

// Log is a stream backend that can be appended to, consumed and health checked.
type Log interface {
	Appender
	Consumer
	Ping(ctx context.Context) error
	Close() error
}
