// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"encoding/json"
	"time"
)

// Event is the producer-supplied form of something that happened on the
// platform. Only Type and Source are required.
type Event struct {
	ID         string          `json:"id,omitempty"`
	Type       string          `json:"type"`
	Source     string          `json:"source"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
	UserID     string          `json:"userId,omitempty"`
	BrandID    string          `json:"brandId,omitempty"`
	EntityType string          `json:"entityType,omitempty"`
	EntityID   string          `json:"entityId,omitempty"`
	Priority   string          `json:"priority,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
}

// ProcessedEvent is an Event after id and timestamp resolution. It is never
// mutated once created; corrections are new events.
type ProcessedEvent struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Source      string          `json:"source"`
	Timestamp   time.Time       `json:"timestamp"`
	UserID      string          `json:"userId,omitempty"`
	BrandID     string          `json:"brandId,omitempty"`
	EntityType  string          `json:"entityType,omitempty"`
	EntityID    string          `json:"entityId,omitempty"`
	Priority    string          `json:"priority,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	ProcessedAt time.Time       `json:"processedAt"`
	StreamKey   string          `json:"streamKey"`
}

// StreamKey derives the stream routing key for an event type and source.
func StreamKey(eventType, source string) string {
	return eventType + ":" + source
}

// EventFilter narrows ListEvents queries. Zero values are ignored.
type EventFilter struct {
	Type    string
	Source  string
	BrandID string
	From    time.Time
	To      time.Time
	Limit   int
}

const (
	DefaultEventListLimit = 100
	MaxEventListLimit     = 1000
)
