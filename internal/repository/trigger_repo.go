// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
)

const (
	constraintActiveWorkflow    = "uq_workflow_triggers_active_workflow"
	constraintActiveWebhookPath = "uq_workflow_triggers_active_webhook_path"
)

const triggerColumns = `id, workflow_id, brand_id, type, config, webhook_path, event_type, state, created_at, deactivated_at`

type TriggerRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewTriggerRepository(pool *pgxpool.Pool, logger *slog.Logger) *TriggerRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &TriggerRepository{
		pool:   pool,
		logger: logger,
	}
}

// CreateActive stores rec as the workflow's ACTIVE trigger. A second active
// trigger for the workflow fails with domain.ErrTriggerAlreadyActive, and a
// webhook path held by another active trigger with domain.ErrWebhookPathTaken.
func (r *TriggerRepository) CreateActive(ctx context.Context, rec domain.TriggerRecord) (domain.TriggerRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	config := rec.Config
	if len(config) == 0 {
		config = []byte(`{}`)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO workflow_triggers (id, workflow_id, brand_id, type, config, webhook_path, event_type, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+triggerColumns,
		rec.ID,
		rec.WorkflowID,
		rec.BrandID,
		rec.Type,
		config,
		rec.WebhookPath,
		rec.EventType,
		domain.TriggerActive,
	)

	created, err := scanTrigger(row)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case constraintActiveWorkflow:
				return domain.TriggerRecord{}, domain.ErrTriggerAlreadyActive
			case constraintActiveWebhookPath:
				return domain.TriggerRecord{}, domain.ErrWebhookPathTaken
			}
		}
		r.logger.Error("insert trigger failed",
			"workflow_id", rec.WorkflowID,
			"type", rec.Type,
			"error", err,
		)
		return domain.TriggerRecord{}, err
	}

	return created, nil
}

// Deactivate moves the workflow's ACTIVE trigger to INACTIVE and returns it.
func (r *TriggerRepository) Deactivate(ctx context.Context, workflowID string) (domain.TriggerRecord, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE workflow_triggers
		SET state = $2, deactivated_at = NOW()
		WHERE workflow_id = $1 AND state = $3
		RETURNING `+triggerColumns,
		workflowID,
		domain.TriggerInactive,
		domain.TriggerActive,
	)

	rec, err := scanTrigger(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TriggerRecord{}, domain.ErrTriggerNotFound
		}
		r.logger.Error("deactivate trigger failed", "workflow_id", workflowID, "error", err)
		return domain.TriggerRecord{}, err
	}
	return rec, nil
}

func (r *TriggerRepository) GetActiveByWorkflow(ctx context.Context, workflowID string) (domain.TriggerRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+triggerColumns+`
		FROM workflow_triggers
		WHERE workflow_id = $1 AND state = $2
	`, workflowID, domain.TriggerActive)

	rec, err := scanTrigger(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TriggerRecord{}, domain.ErrTriggerNotFound
		}
		return domain.TriggerRecord{}, err
	}
	return rec, nil
}

// ListActive returns ACTIVE triggers, optionally of one type only.
func (r *TriggerRepository) ListActive(ctx context.Context, typ domain.TriggerType) ([]domain.TriggerRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+triggerColumns+`
		FROM workflow_triggers
		WHERE state = $1 AND ($2 = '' OR type = $2)
		ORDER BY created_at
	`, domain.TriggerActive, string(typ))
	if err != nil {
		r.logger.Error("list active triggers failed", "type", typ, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.TriggerRecord, 0, 16)
	for rows.Next() {
		rec, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanTrigger(row pgx.Row) (domain.TriggerRecord, error) {
	var rec domain.TriggerRecord
	err := row.Scan(
		&rec.ID,
		&rec.WorkflowID,
		&rec.BrandID,
		&rec.Type,
		&rec.Config,
		&rec.WebhookPath,
		&rec.EventType,
		&rec.State,
		&rec.CreatedAt,
		&rec.DeactivatedAt,
	)
	return rec, err
}
