// SPDX-License-Identifier: Apache-2.0

// Package dispatch turns stream entries and trigger firings into PENDING
// workflow runs.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/auth"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/metrics"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/stream"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/trigger"
)

var errNotStored = errors.New("event not in store")

type EventLookup interface {
	EventExists(ctx context.Context, id string) (bool, error)
}

type RunStore interface {
	CreateRun(ctx context.Context, params domain.CreateRunParams) (domain.WorkflowRun, bool, error)
	ListRuns(ctx context.Context, workflowID string, limit int) ([]domain.WorkflowRun, error)
}

// Bindings is the read side of the trigger registry.
type Bindings interface {
	MatchEvent(ev domain.ProcessedEvent) []trigger.Binding
	Lookup(workflowID string) (trigger.Binding, bool)
	ResolveWebhook(path string) (trigger.Binding, trigger.Webhook, bool)
}

type Deps struct {
	Consumer       stream.Consumer
	Events         EventLookup
	Runs           RunStore
	Bindings       Bindings
	Logger         *slog.Logger
	ExistsAttempts int
	ExistsDelay    time.Duration
}

type Dispatcher struct {
	consumer       stream.Consumer
	events         EventLookup
	runs           RunStore
	bindings       Bindings
	logger         *slog.Logger
	existsAttempts int
	existsDelay    time.Duration
}

func New(deps Deps) *Dispatcher {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}

	attempts := deps.ExistsAttempts
	if attempts <= 0 {
		attempts = 5
	}

	delay := deps.ExistsDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}

	return &Dispatcher{
		consumer:       deps.Consumer,
		events:         deps.Events,
		runs:           deps.Runs,
		bindings:       deps.Bindings,
		logger:         l,
		existsAttempts: attempts,
		existsDelay:    delay,
	}
}

// Run consumes the stream log until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started")
	defer d.logger.Info("dispatcher stopped")
	return d.consumer.Consume(ctx, d.HandleEntry)
}

// HandleEntry creates runs for the EVENT triggers an entry matches. Stream
// membership is only a hint: runs are created once the event has a store
// record, and an entry whose event never reaches the store is dropped. A
// returned error leaves the entry for redelivery.
func (d *Dispatcher) HandleEntry(ctx context.Context, entry stream.Entry) error {
	var ev domain.ProcessedEvent
	if err := json.Unmarshal(entry.Payload, &ev); err != nil || ev.ID == "" {
		metrics.IncDispatchEntry(metrics.DispatchInvalid)
		d.logger.Warn("skip undecodable stream entry", "entry_id", entry.ID, "error", err)
		return nil
	}

	matches := d.bindings.MatchEvent(ev)
	if len(matches) == 0 {
		metrics.IncDispatchEntry(metrics.DispatchUnmatched)
		return nil
	}

	err := retry(ctx, d.existsAttempts, d.existsDelay, func() error {
		ok, err := d.events.EventExists(ctx, ev.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errNotStored
		}
		return nil
	})
	switch {
	case errors.Is(err, errNotStored):
		metrics.IncDispatchEntry(metrics.DispatchMissing)
		d.logger.Warn("skip stream entry without stored event",
			"entry_id", entry.ID,
			"event_id", ev.ID,
		)
		return nil
	case err != nil:
		metrics.IncDispatchEntry(metrics.DispatchFailed)
		return fmt.Errorf("check event %s: %w", ev.ID, err)
	}

	for _, b := range matches {
		_, err := d.createRun(ctx, b, ev.ID, ev.BrandID, entry.Payload)
		if err != nil {
			metrics.IncDispatchEntry(metrics.DispatchFailed)
			return err
		}
	}

	metrics.IncDispatchEntry(metrics.DispatchMatched)
	return nil
}

// Fire creates a run for a non-event trigger.
func (d *Dispatcher) Fire(ctx context.Context, b trigger.Binding, input json.RawMessage) (domain.WorkflowRun, error) {
	return d.createRun(ctx, b, "", b.BrandID, input)
}

// FireManual starts the workflow through its MANUAL trigger.
func (d *Dispatcher) FireManual(ctx context.Context, workflowID string, input json.RawMessage) (domain.WorkflowRun, error) {
	b, ok := d.bindings.Lookup(workflowID)
	if !ok || !visible(ctx, b.BrandID) {
		return domain.WorkflowRun{}, domain.ErrTriggerNotFound
	}
	if b.Trigger.Type() != domain.TriggerManual {
		return domain.WorkflowRun{}, domain.ErrTriggerTypeMismatch
	}
	return d.Fire(ctx, b, input)
}

// FireWebhook starts the workflow that owns path, after checking the body
// signature when the trigger has a secret.
func (d *Dispatcher) FireWebhook(ctx context.Context, path string, body []byte, signature string) (domain.WorkflowRun, error) {
	b, hook, ok := d.bindings.ResolveWebhook(path)
	if !ok {
		return domain.WorkflowRun{}, domain.ErrTriggerNotFound
	}
	if !hook.VerifySignature(body, signature) {
		return domain.WorkflowRun{}, domain.ErrWebhookSignature
	}
	return d.Fire(ctx, b, webhookInput(body))
}

// FireScheduled is the registry's cron callback.
func (d *Dispatcher) FireScheduled(ctx context.Context, b trigger.Binding, firedAt time.Time) {
	input, _ := json.Marshal(map[string]any{"firedAt": firedAt})
	if _, err := d.Fire(ctx, b, input); err != nil {
		d.logger.Error("scheduled run failed",
			"workflow_id", b.WorkflowID,
			"trigger_id", b.TriggerID,
			"error", err,
		)
	}
}

// ListRuns returns a workflow's runs when its trigger is visible to the caller.
func (d *Dispatcher) ListRuns(ctx context.Context, workflowID string, limit int) ([]domain.WorkflowRun, error) {
	if b, ok := d.bindings.Lookup(workflowID); ok && !visible(ctx, b.BrandID) {
		return nil, domain.ErrTriggerNotFound
	}
	runs, err := d.runs.ListRuns(ctx, workflowID, limit)
	if err != nil {
		return nil, err
	}
	if scoped, ok := auth.BrandIDFromContext(ctx); ok {
		filtered := runs[:0]
		for _, run := range runs {
			if run.BrandID == scoped {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}
	return runs, nil
}

func (d *Dispatcher) createRun(ctx context.Context, b trigger.Binding, eventID, brandID string, input json.RawMessage) (domain.WorkflowRun, error) {
	typ := b.Trigger.Type()
	run, created, err := d.runs.CreateRun(ctx, domain.CreateRunParams{
		WorkflowID:  b.WorkflowID,
		TriggerID:   b.TriggerID,
		TriggerType: typ,
		EventID:     eventID,
		BrandID:     brandID,
		Input:       input,
	})
	if err != nil {
		d.logger.Error("create workflow run failed",
			"workflow_id", b.WorkflowID,
			"trigger_type", typ,
			"event_id", eventID,
			"error", err,
		)
		return domain.WorkflowRun{}, fmt.Errorf("create run for workflow %s: %w", b.WorkflowID, err)
	}
	if created {
		metrics.IncRunsDispatched(typ)
	}
	return run, nil
}

func webhookInput(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return body
	}
	wrapped, _ := json.Marshal(map[string]string{"body": string(body)})
	return wrapped
}

func visible(ctx context.Context, brandID string) bool {
	scoped, ok := auth.BrandIDFromContext(ctx)
	return !ok || scoped == brandID
}
