// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
)

// EventRepository is the event store: the system of record for ingested events.
type EventRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewEventRepository(pool *pgxpool.Pool, logger *slog.Logger) *EventRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &EventRepository{
		pool:   pool,
		logger: logger,
	}
}

// CreateEvent inserts ev. Re-inserting an id that already exists is a no-op,
// so a retry with the same producer id does not duplicate the record.
func (r *EventRepository) CreateEvent(ctx context.Context, ev domain.ProcessedEvent) error {
	tags := ev.Tags
	if tags == nil {
		tags = []string{}
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO events (
			id, type, source, stream_key, occurred_at, processed_at,
			user_id, brand_id, entity_type, entity_id, priority,
			payload, metadata, tags
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`,
		ev.ID,
		ev.Type,
		ev.Source,
		ev.StreamKey,
		ev.Timestamp,
		ev.ProcessedAt,
		ev.UserID,
		ev.BrandID,
		ev.EntityType,
		ev.EntityID,
		ev.Priority,
		ev.Payload,
		ev.Metadata,
		tags,
	)
	if err != nil {
		r.logger.Error("insert event failed",
			"event_id", ev.ID,
			"stream_key", ev.StreamKey,
			"error", err,
		)
		return err
	}

	if tag.RowsAffected() == 0 {
		r.logger.Info("event already stored", "event_id", ev.ID)
	}
	return nil
}

// CountByType groups stored events by type. An empty brandID counts every
// brand unless the caller is tenant scoped.
func (r *EventRepository) CountByType(ctx context.Context, brandID string) (map[string]int64, error) {
	brandID, err := tenantBrandID(ctx, brandID)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT type, COUNT(*)
		FROM events
		WHERE ($1 = '' OR brand_id = $1)
		GROUP BY type
	`, brandID)
	if err != nil {
		r.logger.Error("count events by type failed", "brand_id", brandID, "error", err)
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			typ   string
			count int64
		)
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		counts[typ] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *EventRepository) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.ProcessedEvent, error) {
	brandID, err := tenantBrandID(ctx, filter.BrandID)
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = domain.DefaultEventListLimit
	}
	if limit > domain.MaxEventListLimit {
		limit = domain.MaxEventListLimit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, type, source, stream_key, occurred_at, processed_at,
		       user_id, brand_id, entity_type, entity_id, priority,
		       payload, metadata, tags
		FROM events
		WHERE ($1 = '' OR type = $1)
		  AND ($2 = '' OR source = $2)
		  AND ($3 = '' OR brand_id = $3)
		  AND ($4::timestamptz IS NULL OR occurred_at >= $4)
		  AND ($5::timestamptz IS NULL OR occurred_at < $5)
		ORDER BY occurred_at DESC, id
		LIMIT $6
	`,
		filter.Type,
		filter.Source,
		brandID,
		nullableTime(filter.From),
		nullableTime(filter.To),
		limit,
	)
	if err != nil {
		r.logger.Error("list events query failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ProcessedEvent, 0, limit)
	for rows.Next() {
		var ev domain.ProcessedEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.Type,
			&ev.Source,
			&ev.StreamKey,
			&ev.Timestamp,
			&ev.ProcessedAt,
			&ev.UserID,
			&ev.BrandID,
			&ev.EntityType,
			&ev.EntityID,
			&ev.Priority,
			&ev.Payload,
			&ev.Metadata,
			&ev.Tags,
		); err != nil {
			r.logger.Error("scan event row failed", "error", err)
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// EventExists reports whether id has a durable record.
func (r *EventRepository) EventExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`,
		id,
	).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *EventRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
