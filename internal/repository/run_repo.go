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

const runColumns = `id, workflow_id, trigger_id, trigger_type, event_id, brand_id, status, input, created_at`

// RunRepository records PENDING workflow runs for the execution engine.
type RunRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewRunRepository(pool *pgxpool.Pool, logger *slog.Logger) *RunRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &RunRepository{
		pool:   pool,
		logger: logger,
	}
}

// CreateRun inserts a PENDING run. For event-driven runs the (trigger, event)
// pair is unique; a redelivered event returns created=false and no run.
func (r *RunRepository) CreateRun(ctx context.Context, params domain.CreateRunParams) (domain.WorkflowRun, bool, error) {
	runID := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO workflow_runs (id, workflow_id, trigger_id, trigger_type, event_id, brand_id, status, input)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trigger_id, event_id) WHERE event_id <> '' DO NOTHING
		RETURNING `+runColumns,
		runID,
		params.WorkflowID,
		params.TriggerID,
		params.TriggerType,
		params.EventID,
		params.BrandID,
		domain.RunPending,
		params.Input,
	)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Info("run already dispatched",
				"workflow_id", params.WorkflowID,
				"trigger_id", params.TriggerID,
				"event_id", params.EventID,
			)
			return domain.WorkflowRun{}, false, nil
		}
		r.logger.Error("insert run failed",
			"workflow_id", params.WorkflowID,
			"trigger_id", params.TriggerID,
			"error", err,
		)
		return domain.WorkflowRun{}, false, err
	}

	r.logger.Info("run created",
		"run_id", run.ID,
		"workflow_id", run.WorkflowID,
		"trigger_type", run.TriggerType,
	)
	return run, true, nil
}

// ListRuns returns the workflow's runs, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, workflowID string, limit int) ([]domain.WorkflowRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM workflow_runs
		WHERE workflow_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, workflowID, limit)
	if err != nil {
		r.logger.Error("list runs failed", "workflow_id", workflowID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.WorkflowRun, 0, 16)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanRun(row pgx.Row) (domain.WorkflowRun, error) {
	var run domain.WorkflowRun
	err := row.Scan(
		&run.ID,
		&run.WorkflowID,
		&run.TriggerID,
		&run.TriggerType,
		&run.EventID,
		&run.BrandID,
		&run.Status,
		&run.Input,
		&run.CreatedAt,
	)
	return run, err
}
