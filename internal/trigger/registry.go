// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/auth"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/metrics"
	"github.com/robfig/cron/v3"
)

// Store persists trigger records. CreateActive enforces one active trigger
// per workflow and per webhook path.
type Store interface {
	CreateActive(ctx context.Context, rec domain.TriggerRecord) (domain.TriggerRecord, error)
	Deactivate(ctx context.Context, workflowID string) (domain.TriggerRecord, error)
	GetActiveByWorkflow(ctx context.Context, workflowID string) (domain.TriggerRecord, error)
	ListActive(ctx context.Context, typ domain.TriggerType) ([]domain.TriggerRecord, error)
}

// Binding is an active trigger held by this process.
type Binding struct {
	TriggerID  uuid.UUID
	WorkflowID string
	BrandID    string
	Trigger    Trigger
}

// ScheduleFunc is called when a SCHEDULE trigger's cron entry fires.
type ScheduleFunc func(ctx context.Context, b Binding, firedAt time.Time)

type binding struct {
	Binding
	cronID cron.EntryID
	path   string
	ready  bool
}

type Deps struct {
	Store  Store
	Logger *slog.Logger
	Cron   *cron.Cron
}

// Registry validates, sets up and tears down workflow triggers. Setup state
// (cron entries, webhook routes, event subscriptions) lives in memory and is
// rebuilt from the store by Restore.
type Registry struct {
	store  Store
	logger *slog.Logger
	cron   *cron.Cron

	mu            sync.RWMutex
	active        map[string]*binding
	webhooks      map[string]string
	subscriptions map[string]*binding
	onSchedule    ScheduleFunc
	baseCtx       context.Context
}

func NewRegistry(deps Deps) *Registry {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}

	c := deps.Cron
	if c == nil {
		c = cron.New()
	}

	return &Registry{
		store:         deps.Store,
		logger:        l,
		cron:          c,
		active:        make(map[string]*binding),
		webhooks:      make(map[string]string),
		subscriptions: make(map[string]*binding),
		baseCtx:       context.Background(),
	}
}

// OnSchedule sets the callback for SCHEDULE triggers.
func (r *Registry) OnSchedule(fn ScheduleFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSchedule = fn
}

// Start runs the cron scheduler. Scheduled callbacks receive ctx.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	r.baseCtx = ctx
	r.mu.Unlock()
	r.cron.Start()
}

// Stop halts the scheduler and waits for running callbacks.
func (r *Registry) Stop() {
	<-r.cron.Stop().Done()
}

// Register validates spec, sets up its listening resource and stores it as
// the workflow's ACTIVE trigger. A rejected or failed registration leaves no
// resource reserved.
func (r *Registry) Register(ctx context.Context, spec domain.TriggerSpec) (domain.TriggerRecord, error) {
	workflowID := strings.TrimSpace(spec.WorkflowID)
	if workflowID == "" {
		return domain.TriggerRecord{}, domain.NewValidationError("workflowId is required")
	}

	typ, ok := domain.ParseTriggerType(string(spec.Type))
	if !ok {
		return domain.TriggerRecord{}, domain.NewTriggerConfigError("unknown trigger type %q", spec.Type)
	}

	t, err := Check(typ, spec.Config)
	if err != nil {
		return domain.TriggerRecord{}, err
	}

	brandID, err := auth.ScopeBrandID(ctx, spec.BrandID)
	if err != nil {
		return domain.TriggerRecord{}, domain.NewValidationError("brandId %q is outside the caller's tenant", spec.BrandID)
	}

	b := &binding{Binding: Binding{
		TriggerID:  uuid.New(),
		WorkflowID: workflowID,
		BrandID:    brandID,
		Trigger:    t,
	}}
	if err := r.setup(b); err != nil {
		return domain.TriggerRecord{}, err
	}

	config := spec.Config
	if len(config) == 0 {
		config = json.RawMessage(`{}`)
	}
	rec := domain.TriggerRecord{
		ID:          b.TriggerID,
		WorkflowID:  workflowID,
		BrandID:     brandID,
		Type:        typ,
		Config:      config,
		WebhookPath: b.path,
	}
	if ev, ok := t.(Event); ok {
		rec.EventType = strings.TrimSpace(ev.EventType)
	}

	created, err := r.store.CreateActive(ctx, rec)
	if err != nil {
		r.teardown(workflowID)
		r.logger.Warn("trigger registration rolled back",
			"workflow_id", workflowID,
			"type", typ,
			"error", err,
		)
		return domain.TriggerRecord{}, err
	}

	r.markReady(workflowID)
	metrics.AddActiveTriggers(typ, 1)
	r.logger.Info("trigger activated",
		"workflow_id", workflowID,
		"trigger_id", created.ID,
		"type", typ,
	)
	return redact(created), nil
}

// Deactivate marks the workflow's trigger INACTIVE and releases its resource.
func (r *Registry) Deactivate(ctx context.Context, workflowID string) (domain.TriggerRecord, error) {
	workflowID = strings.TrimSpace(workflowID)
	if _, err := r.Get(ctx, workflowID); err != nil {
		return domain.TriggerRecord{}, err
	}

	rec, err := r.store.Deactivate(ctx, workflowID)
	if err != nil {
		return domain.TriggerRecord{}, err
	}

	if r.teardown(workflowID) {
		metrics.AddActiveTriggers(rec.Type, -1)
	}
	r.logger.Info("trigger deactivated",
		"workflow_id", workflowID,
		"trigger_id", rec.ID,
		"type", rec.Type,
	)
	return redact(rec), nil
}

// Restore sets up every ACTIVE trigger in the store. Records that no longer
// validate are logged and skipped.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	records, err := r.store.ListActive(ctx, "")
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, rec := range records {
		t, err := Check(rec.Type, rec.Config)
		if err == nil {
			err = r.setup(&binding{Binding: Binding{
				TriggerID:  rec.ID,
				WorkflowID: rec.WorkflowID,
				BrandID:    rec.BrandID,
				Trigger:    t,
			}})
		}
		if err != nil {
			r.logger.Warn("skip trigger restore",
				"workflow_id", rec.WorkflowID,
				"trigger_id", rec.ID,
				"error", err,
			)
			continue
		}
		r.markReady(rec.WorkflowID)
		metrics.AddActiveTriggers(rec.Type, 1)
		restored++
	}

	r.logger.Info("triggers restored", "count", restored, "stored", len(records))
	return restored, nil
}

// Get returns the workflow's ACTIVE trigger as visible to the caller.
func (r *Registry) Get(ctx context.Context, workflowID string) (domain.TriggerRecord, error) {
	rec, err := r.store.GetActiveByWorkflow(ctx, strings.TrimSpace(workflowID))
	if err != nil {
		return domain.TriggerRecord{}, err
	}
	if !visible(ctx, rec.BrandID) {
		return domain.TriggerRecord{}, domain.ErrTriggerNotFound
	}
	return redact(rec), nil
}

// List returns ACTIVE triggers visible to the caller, optionally of one type.
func (r *Registry) List(ctx context.Context, typ domain.TriggerType) ([]domain.TriggerRecord, error) {
	records, err := r.store.ListActive(ctx, typ)
	if err != nil {
		return nil, err
	}

	out := make([]domain.TriggerRecord, 0, len(records))
	for _, rec := range records {
		if visible(ctx, rec.BrandID) {
			out = append(out, redact(rec))
		}
	}
	return out, nil
}

// Lookup returns the workflow's ready binding.
func (r *Registry) Lookup(workflowID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.active[workflowID]
	if !ok || !b.ready {
		return Binding{}, false
	}
	return b.Binding, true
}

// ResolveWebhook finds the WEBHOOK trigger that owns path.
func (r *Registry) ResolveWebhook(path string) (Binding, Webhook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflowID, ok := r.webhooks[CanonicalWebhookPath(path)]
	if !ok {
		return Binding{}, Webhook{}, false
	}
	b, ok := r.active[workflowID]
	if !ok || !b.ready {
		return Binding{}, Webhook{}, false
	}
	hook, ok := b.Trigger.(Webhook)
	if !ok {
		return Binding{}, Webhook{}, false
	}
	return b.Binding, hook, true
}

// MatchEvent returns the EVENT bindings subscribed to ev, ordered by workflow
// id. A brand-owned trigger only sees its own brand's events.
func (r *Registry) MatchEvent(ev domain.ProcessedEvent) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Binding
	for _, b := range r.subscriptions {
		if !b.ready {
			continue
		}
		if b.BrandID != "" && b.BrandID != ev.BrandID {
			continue
		}
		sub, ok := b.Trigger.(Event)
		if !ok || !sub.MatchesEvent(ev.Type, ev.Source) {
			continue
		}
		out = append(out, b.Binding)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].WorkflowID < out[j].WorkflowID })
	return out
}

func (r *Registry) setup(b *binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[b.WorkflowID]; exists {
		return domain.ErrTriggerAlreadyActive
	}

	switch t := b.Trigger.(type) {
	case Schedule:
		id, err := r.cron.AddFunc(t.spec(), r.scheduleJob(b.WorkflowID))
		if err != nil {
			return domain.NewTriggerConfigError("invalid cron expression %q: %v", t.CronExpression, err)
		}
		b.cronID = id
	case Webhook:
		path := CanonicalWebhookPath(t.Path)
		if _, taken := r.webhooks[path]; taken {
			return domain.ErrWebhookPathTaken
		}
		r.webhooks[path] = b.WorkflowID
		b.path = path
	case Event:
		r.subscriptions[b.WorkflowID] = b
	case Manual, Email, Database:
	}

	r.active[b.WorkflowID] = b
	return nil
}

// teardown releases the workflow's resource and reports whether one was held.
func (r *Registry) teardown(workflowID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.active[workflowID]
	if !ok {
		return false
	}

	switch b.Trigger.(type) {
	case Schedule:
		r.cron.Remove(b.cronID)
	case Webhook:
		delete(r.webhooks, b.path)
	case Event:
		delete(r.subscriptions, workflowID)
	case Manual, Email, Database:
	}

	delete(r.active, workflowID)
	return b.ready
}

func (r *Registry) markReady(workflowID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.active[workflowID]; ok {
		b.ready = true
	}
}

func (r *Registry) scheduleJob(workflowID string) func() {
	return func() {
		r.mu.RLock()
		b, ok := r.active[workflowID]
		fn := r.onSchedule
		ctx := r.baseCtx
		var snapshot Binding
		if ok {
			snapshot = b.Binding
			ok = b.ready
		}
		r.mu.RUnlock()

		if !ok || fn == nil {
			return
		}
		fn(ctx, snapshot, time.Now().UTC())
	}
}

func visible(ctx context.Context, brandID string) bool {
	scoped, ok := auth.BrandIDFromContext(ctx)
	return !ok || scoped == brandID
}

// redact hides webhook secrets from records leaving the registry.
func redact(rec domain.TriggerRecord) domain.TriggerRecord {
	if rec.Type != domain.TriggerWebhook {
		return rec
	}
	var cfg map[string]any
	if err := json.Unmarshal(rec.Config, &cfg); err != nil {
		return rec
	}
	if _, ok := cfg["secret"]; !ok {
		return rec
	}
	cfg["secret"] = "redacted"
	body, err := json.Marshal(cfg)
	if err != nil {
		return rec
	}
	rec.Config = body
	return rec
}
