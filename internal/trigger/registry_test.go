// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/auth"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(store *memStore) *Registry {
	return NewRegistry(Deps{
		Store:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Cron:   cron.New(),
	})
}

func spec(typ domain.TriggerType, workflowID, config string) domain.TriggerSpec {
	return domain.TriggerSpec{Type: typ, WorkflowID: workflowID, Config: json.RawMessage(config)}
}

func TestRegisterManual(t *testing.T) {
	store := &memStore{}
	reg := newTestRegistry(store)

	rec, err := reg.Register(context.Background(), spec("manual", "wf-1", ``))
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerManual, rec.Type)
	assert.Equal(t, domain.TriggerActive, rec.State)
	assert.JSONEq(t, `{}`, string(rec.Config))

	b, ok := reg.Lookup("wf-1")
	require.True(t, ok)
	assert.Equal(t, rec.ID, b.TriggerID)
	assert.IsType(t, Manual{}, b.Trigger)
}

func TestRegisterRejectsInvalidConfigWithoutSetup(t *testing.T) {
	store := &memStore{}
	reg := newTestRegistry(store)

	_, err := reg.Register(context.Background(), spec(domain.TriggerSchedule, "wf-1", `{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTriggerConfig)

	_, err = reg.Register(context.Background(), spec(domain.TriggerSchedule, "wf-1", `{"cronExpression":"not a cron"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTriggerConfig)

	_, err = reg.Register(context.Background(), spec(domain.TriggerEmail, "wf-1", `{not json`))
	assert.ErrorIs(t, err, domain.ErrTriggerConfig)

	_, err = reg.Register(context.Background(), spec(domain.TriggerDatabase, "wf-1", `["orders"]`))
	assert.ErrorIs(t, err, domain.ErrTriggerConfig)

	_, err = reg.Register(context.Background(), spec("SMS", "wf-1", `{}`))
	assert.ErrorIs(t, err, domain.ErrTriggerConfig)

	_, err = reg.Register(context.Background(), spec(domain.TriggerManual, " ", `{}`))
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Zero(t, store.activeCount())
	assert.Empty(t, reg.cron.Entries())
	_, ok := reg.Lookup("wf-1")
	assert.False(t, ok)
}

func TestRegisterScheduleAddsCronEntryAndFires(t *testing.T) {
	store := &memStore{}
	reg := newTestRegistry(store)

	fired := make(chan Binding, 1)
	reg.OnSchedule(func(_ context.Context, b Binding, _ time.Time) { fired <- b })

	_, err := reg.Register(context.Background(), spec(domain.TriggerSchedule, "wf-cron", `{"cronExpression":"0 * * * *","timezone":"UTC"}`))
	require.NoError(t, err)

	entries := reg.cron.Entries()
	require.Len(t, entries, 1)
	entries[0].Job.Run()

	select {
	case b := <-fired:
		assert.Equal(t, "wf-cron", b.WorkflowID)
	case <-time.After(time.Second):
		t.Fatal("expected schedule callback")
	}

	_, err = reg.Deactivate(context.Background(), "wf-cron")
	require.NoError(t, err)
	assert.Empty(t, reg.cron.Entries())
}

func TestRegisterWebhookReservesPath(t *testing.T) {
	store := &memStore{}
	reg := newTestRegistry(store)

	rec, err := reg.Register(context.Background(), spec(domain.TriggerWebhook, "wf-hook", `{"path":"/hooks/orders","secret":"s3"}`))
	require.NoError(t, err)
	assert.Equal(t, "/orders", rec.WebhookPath)
	assert.JSONEq(t, `{"path":"/hooks/orders","secret":"redacted"}`, string(rec.Config))

	b, hook, ok := reg.ResolveWebhook("/orders/")
	require.True(t, ok)
	assert.Equal(t, "wf-hook", b.WorkflowID)
	assert.Equal(t, "s3", hook.Secret)

	_, err = reg.Register(context.Background(), spec(domain.TriggerWebhook, "wf-other", `{"path":"orders"}`))
	assert.ErrorIs(t, err, domain.ErrWebhookPathTaken)

	_, err = reg.Deactivate(context.Background(), "wf-hook")
	require.NoError(t, err)
	_, _, ok = reg.ResolveWebhook("/orders")
	assert.False(t, ok)

	_, err = reg.Register(context.Background(), spec(domain.TriggerWebhook, "wf-other", `{"path":"orders"}`))
	assert.NoError(t, err)
}

func TestRegisterOneActiveTriggerPerWorkflow(t *testing.T) {
	reg := newTestRegistry(&memStore{})

	_, err := reg.Register(context.Background(), spec(domain.TriggerManual, "wf-1", `{}`))
	require.NoError(t, err)

	_, err = reg.Register(context.Background(), spec(domain.TriggerEvent, "wf-1", `{"eventType":"user.signup"}`))
	assert.ErrorIs(t, err, domain.ErrTriggerAlreadyActive)

	b, ok := reg.Lookup("wf-1")
	require.True(t, ok)
	assert.IsType(t, Manual{}, b.Trigger)
}

func TestRegisterPersistFailureTearsDown(t *testing.T) {
	store := &memStore{createErr: errStoreDown}
	reg := newTestRegistry(store)

	_, err := reg.Register(context.Background(), spec(domain.TriggerWebhook, "wf-hook", `{"path":"/orders"}`))
	assert.ErrorIs(t, err, errStoreDown)

	_, _, ok := reg.ResolveWebhook("/orders")
	assert.False(t, ok)
	_, ok = reg.Lookup("wf-hook")
	assert.False(t, ok)

	store.createErr = nil
	_, err = reg.Register(context.Background(), spec(domain.TriggerWebhook, "wf-hook", `{"path":"/orders"}`))
	assert.NoError(t, err)
}

func TestMatchEvent(t *testing.T) {
	reg := newTestRegistry(&memStore{})
	ctx := context.Background()

	_, err := reg.Register(ctx, spec(domain.TriggerEvent, "wf-b-signup", `{"eventType":"user.signup"}`))
	require.NoError(t, err)
	_, err = reg.Register(ctx, spec(domain.TriggerEvent, "wf-a-users", `{"eventType":"user.*"}`))
	require.NoError(t, err)
	_, err = reg.Register(ctx, spec(domain.TriggerEvent, "wf-mobile", `{"eventType":"user.signup","source":"mobile_app"}`))
	require.NoError(t, err)
	_, err = reg.Register(auth.WithBrandID(ctx, "brand-7"), spec(domain.TriggerEvent, "wf-brand7", `{"eventType":"*"}`))
	require.NoError(t, err)
	_, err = reg.Register(ctx, spec(domain.TriggerManual, "wf-manual", `{}`))
	require.NoError(t, err)

	matches := reg.MatchEvent(domain.ProcessedEvent{Type: "user.signup", Source: "web_app", BrandID: "brand-42"})
	require.Len(t, matches, 2)
	assert.Equal(t, "wf-a-users", matches[0].WorkflowID)
	assert.Equal(t, "wf-b-signup", matches[1].WorkflowID)

	matches = reg.MatchEvent(domain.ProcessedEvent{Type: "commerce.purchase", Source: "api", BrandID: "brand-7"})
	require.Len(t, matches, 1)
	assert.Equal(t, "wf-brand7", matches[0].WorkflowID)
	assert.Equal(t, "brand-7", matches[0].BrandID)
}

func TestDeactivate(t *testing.T) {
	store := &memStore{}
	reg := newTestRegistry(store)
	ctx := context.Background()

	_, err := reg.Register(ctx, spec(domain.TriggerEvent, "wf-1", `{"eventType":"user.signup"}`))
	require.NoError(t, err)

	rec, err := reg.Deactivate(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerInactive, rec.State)
	assert.Empty(t, reg.MatchEvent(domain.ProcessedEvent{Type: "user.signup", Source: "web_app"}))

	_, err = reg.Deactivate(ctx, "wf-1")
	assert.ErrorIs(t, err, domain.ErrTriggerNotFound)
}

func TestTenantVisibility(t *testing.T) {
	reg := newTestRegistry(&memStore{})
	brand42 := auth.WithBrandID(context.Background(), "brand-42")
	brand7 := auth.WithBrandID(context.Background(), "brand-7")

	_, err := reg.Register(brand42, spec(domain.TriggerManual, "wf-42", `{}`))
	require.NoError(t, err)

	_, err = reg.Get(brand7, "wf-42")
	assert.ErrorIs(t, err, domain.ErrTriggerNotFound)
	_, err = reg.Deactivate(brand7, "wf-42")
	assert.ErrorIs(t, err, domain.ErrTriggerNotFound)

	rec, err := reg.Get(brand42, "wf-42")
	require.NoError(t, err)
	assert.Equal(t, "brand-42", rec.BrandID)

	listed, err := reg.List(brand7, "")
	require.NoError(t, err)
	assert.Empty(t, listed)

	listed, err = reg.List(context.Background(), domain.TriggerManual)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	_, err = reg.Register(brand7, domain.TriggerSpec{Type: domain.TriggerManual, WorkflowID: "wf-x", BrandID: "brand-42"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRestoreRebuildsBindings(t *testing.T) {
	store := &memStore{}
	first := newTestRegistry(store)
	ctx := context.Background()

	_, err := first.Register(ctx, spec(domain.TriggerWebhook, "wf-hook", `{"path":"/orders"}`))
	require.NoError(t, err)
	_, err = first.Register(ctx, spec(domain.TriggerSchedule, "wf-cron", `{"cronExpression":"*/5 * * * *"}`))
	require.NoError(t, err)
	_, err = first.Register(ctx, spec(domain.TriggerEvent, "wf-event", `{"eventType":"user.*"}`))
	require.NoError(t, err)

	// A stored record that no longer sets up is skipped.
	store.records = append(store.records, domain.TriggerRecord{
		WorkflowID: "wf-broken",
		Type:       domain.TriggerSchedule,
		Config:     json.RawMessage(`{"cronExpression":"bogus"}`),
		State:      domain.TriggerActive,
	})

	second := newTestRegistry(store)
	restored, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, restored)

	_, _, ok := second.ResolveWebhook("/hooks/orders")
	assert.True(t, ok)
	assert.Len(t, second.cron.Entries(), 1)
	assert.Len(t, second.MatchEvent(domain.ProcessedEvent{Type: "user.login", Source: "web_app"}), 1)
	_, ok = second.Lookup("wf-broken")
	assert.False(t, ok)
}
