// SPDX-License-Identifier: Apache-2.0

// Package ingest normalizes producer events and dual-writes them to the
// stream log and the event store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/auth"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/metrics"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/stream"
)

// EventStore is the durable system of record for events.
type EventStore interface {
	CreateEvent(ctx context.Context, ev domain.ProcessedEvent) error
	CountByType(ctx context.Context, brandID string) (map[string]int64, error)
	ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.ProcessedEvent, error)
}

type Deps struct {
	Stream stream.Appender
	Store  EventStore
	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

type Service struct {
	stream stream.Appender
	store  EventStore
	logger *slog.Logger
	clock  *monotonicClock
	newID  func() string
}

func NewService(deps Deps) *Service {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}

	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Service{
		stream: deps.Stream,
		store:  deps.Store,
		logger: l,
		clock:  newMonotonicClock(deps.Now),
		newID:  newID,
	}
}

// IngestEvent resolves id and timestamp, appends the event to the stream log
// and then persists it. Either write failing fails the call; a stream append
// is not undone when persistence fails afterwards.
func (s *Service) IngestEvent(ctx context.Context, ev domain.Event) (domain.ProcessedEvent, error) {
	processed, err := s.normalize(ctx, ev)
	if err != nil {
		s.recordFailure(ev, err)
		return domain.ProcessedEvent{}, err
	}

	body, err := json.Marshal(processed)
	if err != nil {
		err = domain.NewValidationError("event is not serializable: %v", err)
		s.recordFailure(ev, err)
		return domain.ProcessedEvent{}, err
	}

	started := time.Now()
	entryID, err := s.stream.Append(ctx, processed.StreamKey, body)
	metrics.ObserveStreamAppend(time.Since(started))
	if err != nil {
		err = domain.NewStreamWriteError(err)
		s.recordFailure(ev, err)
		return domain.ProcessedEvent{}, err
	}

	started = time.Now()
	err = s.store.CreateEvent(ctx, processed)
	metrics.ObserveEventPersist(time.Since(started))
	if err != nil {
		s.logger.Warn("event appended to stream but not persisted",
			"event_id", processed.ID,
			"stream_key", processed.StreamKey,
			"entry_id", entryID,
		)
		err = domain.NewPersistenceError(err)
		s.recordFailure(ev, err)
		return domain.ProcessedEvent{}, err
	}

	metrics.IncIngested(domain.BatchSuccess)
	s.logger.Debug("event ingested",
		"event_id", processed.ID,
		"stream_key", processed.StreamKey,
		"entry_id", entryID,
	)
	return processed, nil
}

// IngestBatch ingests events in order. Without ContinueOnError the first
// failure stops the batch and later events are not attempted.
func (s *Service) IngestBatch(ctx context.Context, events []domain.Event, opts domain.BatchOptions) domain.BatchResult {
	result := domain.BatchResult{
		Total:   len(events),
		Results: make([]domain.BatchOutcome, 0, len(events)),
	}

	for _, ev := range events {
		processed, err := s.IngestEvent(ctx, ev)
		if err != nil {
			result.Failed++
			result.Results = append(result.Results, domain.BatchOutcome{
				ID:     ev.ID,
				Status: domain.BatchFailed,
				Code:   domain.CodeOf(err),
				Error:  domain.MessageOf(err),
			})
			if !opts.ContinueOnError {
				break
			}
			continue
		}

		result.Successful++
		result.Results = append(result.Results, domain.BatchOutcome{
			ID:     processed.ID,
			Status: domain.BatchSuccess,
		})
	}

	if result.Failed > 0 {
		s.logger.Info("batch ingested with failures",
			"total", result.Total,
			"successful", result.Successful,
			"failed", result.Failed,
			"continue_on_error", opts.ContinueOnError,
		)
	}
	return result
}

// EventStats counts stored events per type, optionally for one brand.
func (s *Service) EventStats(ctx context.Context, brandID string) (map[string]int64, error) {
	counts, err := s.store.CountByType(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	return counts, nil
}

func (s *Service) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.ProcessedEvent, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, domain.NewValidationError("from must be before to")
	}
	events, err := s.store.ListEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *Service) normalize(ctx context.Context, ev domain.Event) (domain.ProcessedEvent, error) {
	typ := strings.TrimSpace(ev.Type)
	if typ == "" {
		return domain.ProcessedEvent{}, domain.NewValidationError("type is required")
	}
	source := strings.TrimSpace(ev.Source)
	if source == "" {
		return domain.ProcessedEvent{}, domain.NewValidationError("source is required")
	}

	brandID, err := auth.ScopeBrandID(ctx, ev.BrandID)
	if err != nil {
		return domain.ProcessedEvent{}, domain.NewValidationError("brandId %q is outside the caller's tenant", ev.BrandID)
	}

	id := strings.TrimSpace(ev.ID)
	if id == "" {
		id = s.newID()
	}

	processedAt := s.clock.Now()
	timestamp := processedAt
	if ev.Timestamp != nil && !ev.Timestamp.IsZero() {
		timestamp = ev.Timestamp.UTC()
	}

	return domain.ProcessedEvent{
		ID:          id,
		Type:        typ,
		Source:      source,
		Timestamp:   timestamp,
		UserID:      ev.UserID,
		BrandID:     brandID,
		EntityType:  ev.EntityType,
		EntityID:    ev.EntityID,
		Priority:    ev.Priority,
		Payload:     ev.Payload,
		Metadata:    ev.Metadata,
		Tags:        ev.Tags,
		ProcessedAt: processedAt,
		StreamKey:   domain.StreamKey(typ, source),
	}, nil
}

func (s *Service) recordFailure(ev domain.Event, err error) {
	code := domain.CodeOf(err)
	metrics.IncIngested(domain.BatchFailed)
	metrics.IncIngestFailure(code)

	level := slog.LevelWarn
	if code == domain.CodeValidation {
		level = slog.LevelDebug
	}
	s.logger.Log(context.Background(), level, "event ingestion failed",
		"event_id", ev.ID,
		"type", ev.Type,
		"source", ev.Source,
		"code", code,
		"error", err,
	)
}
