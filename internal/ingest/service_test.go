// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/auth"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appendCall struct {
	streamKey string
	payload   []byte
}

type fakeStream struct {
	mu    sync.Mutex
	calls []appendCall
	err   error
}

func (f *fakeStream) Append(_ context.Context, streamKey string, payload []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, appendCall{streamKey: streamKey, payload: payload})
	return "1-0", nil
}

type fakeStore struct {
	mu       sync.Mutex
	created  []domain.ProcessedEvent
	err      error
	counts   map[string]int64
	brandArg string
	filter   domain.EventFilter
}

func (f *fakeStore) CreateEvent(_ context.Context, ev domain.ProcessedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, ev)
	return nil
}

func (f *fakeStore) CountByType(_ context.Context, brandID string) (map[string]int64, error) {
	f.brandArg = brandID
	return f.counts, f.err
}

func (f *fakeStore) ListEvents(_ context.Context, filter domain.EventFilter) ([]domain.ProcessedEvent, error) {
	f.filter = filter
	return f.created, f.err
}

func newTestService(st *fakeStream, store *fakeStore) *Service {
	return NewService(Deps{
		Stream: st,
		Store:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestIngestEventGeneratesIDAndTimestamps(t *testing.T) {
	st, store := &fakeStream{}, &fakeStore{}
	svc := newTestService(st, store)

	before := time.Now().UTC()
	got, err := svc.IngestEvent(context.Background(), domain.Event{
		Type:    "user.signup",
		Source:  "web_app",
		Payload: json.RawMessage(`{"email":"a@b.com"}`),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "user.signup:web_app", got.StreamKey)
	assert.WithinDuration(t, before, got.Timestamp, 2*time.Second)
	assert.False(t, got.ProcessedAt.Before(got.Timestamp))
	assert.JSONEq(t, `{"email":"a@b.com"}`, string(got.Payload))

	require.Len(t, st.calls, 1)
	assert.Equal(t, "user.signup:web_app", st.calls[0].streamKey)
	var onStream domain.ProcessedEvent
	require.NoError(t, json.Unmarshal(st.calls[0].payload, &onStream))
	assert.Equal(t, got.ID, onStream.ID)

	require.Len(t, store.created, 1)
	assert.Equal(t, got.ID, store.created[0].ID)
}

func TestIngestEventKeepsSuppliedID(t *testing.T) {
	svc := newTestService(&fakeStream{}, &fakeStore{})
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	got, err := svc.IngestEvent(context.Background(), domain.Event{
		ID:        "evt-1",
		Type:      "commerce.purchase",
		Source:    "api",
		Timestamp: &ts,
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", got.ID)
	assert.True(t, got.Timestamp.Equal(ts))
	assert.Equal(t, "commerce.purchase:api", got.StreamKey)
}

func TestIngestEventValidation(t *testing.T) {
	st, store := &fakeStream{}, &fakeStore{}
	svc := newTestService(st, store)

	for _, ev := range []domain.Event{
		{Source: "web_app"},
		{Type: "user.signup"},
		{Type: "  ", Source: "web_app"},
	} {
		_, err := svc.IngestEvent(context.Background(), ev)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
	assert.Empty(t, st.calls, "invalid events must not reach the stream")
	assert.Empty(t, store.created)
}

func TestIngestEventStreamFailureSkipsStore(t *testing.T) {
	st := &fakeStream{err: errors.New("connection refused")}
	store := &fakeStore{}
	svc := newTestService(st, store)

	_, err := svc.IngestEvent(context.Background(), domain.Event{Type: "user.signup", Source: "web_app"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStreamWrite)
	assert.Equal(t, domain.CodeStreamWrite, domain.CodeOf(err))
	assert.Empty(t, store.created)
}

func TestIngestEventPersistenceFailureAfterAppend(t *testing.T) {
	st := &fakeStream{}
	store := &fakeStore{err: errors.New("insert failed")}
	svc := newTestService(st, store)

	_, err := svc.IngestEvent(context.Background(), domain.Event{Type: "user.signup", Source: "web_app"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Len(t, st.calls, 1, "stream append is not rolled back")
}

func TestIngestEventTenantScope(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(&fakeStream{}, store)
	ctx := auth.WithBrandID(context.Background(), "brand-42")

	got, err := svc.IngestEvent(ctx, domain.Event{Type: "user.signup", Source: "web_app"})
	require.NoError(t, err)
	assert.Equal(t, "brand-42", got.BrandID)

	_, err = svc.IngestEvent(ctx, domain.Event{Type: "user.signup", Source: "web_app", BrandID: "brand-7"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Len(t, store.created, 1)
}

func batchWithInvalidThird() []domain.Event {
	return []domain.Event{
		{ID: "e1", Type: "user.signup", Source: "web_app"},
		{ID: "e2", Type: "content.view", Source: "mobile_app"},
		{ID: "e3", Source: "api"},
		{ID: "e4", Type: "commerce.purchase", Source: "api"},
		{ID: "e5", Type: "campaign.launched", Source: "webhook"},
	}
}

func TestIngestBatchStopsOnFirstFailure(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(&fakeStream{}, store)

	res := svc.IngestBatch(context.Background(), batchWithInvalidThird(), domain.BatchOptions{})

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Results, 3)
	assert.Equal(t, domain.BatchFailed, res.Results[2].Status)
	assert.Equal(t, "e3", res.Results[2].ID)
	assert.Equal(t, domain.CodeValidation, res.Results[2].Code)
	assert.NotEmpty(t, res.Results[2].Error)
	assert.Len(t, store.created, 2)
}

func TestIngestBatchContinueOnError(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(&fakeStream{}, store)

	res := svc.IngestBatch(context.Background(), batchWithInvalidThird(), domain.BatchOptions{ContinueOnError: true})

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 4, res.Successful)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Results, 5)
	for i, want := range []string{"e1", "e2", "e3", "e4", "e5"} {
		assert.Equal(t, want, res.Results[i].ID)
	}
	assert.Equal(t, domain.BatchFailed, res.Results[2].Status)
	assert.Equal(t, domain.BatchSuccess, res.Results[4].Status)
	assert.Equal(t, res.Successful+res.Failed, len(res.Results))
}

func TestIngestBatchEmpty(t *testing.T) {
	svc := newTestService(&fakeStream{}, &fakeStore{})

	res := svc.IngestBatch(context.Background(), nil, domain.BatchOptions{})
	assert.Equal(t, 0, res.Total)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)
}

func TestEventStatsPassesBrand(t *testing.T) {
	store := &fakeStore{counts: map[string]int64{"user.signup": 3}}
	svc := newTestService(&fakeStream{}, store)

	counts, err := svc.EventStats(context.Background(), "brand-42")
	require.NoError(t, err)
	assert.Equal(t, "brand-42", store.brandArg)
	assert.Equal(t, int64(3), counts["user.signup"])
}

func TestListEventsRejectsInvertedWindow(t *testing.T) {
	svc := newTestService(&fakeStream{}, &fakeStore{})
	now := time.Now()

	_, err := svc.ListEvents(context.Background(), domain.EventFilter{From: now, To: now.Add(-time.Hour)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMonotonicClockNeverGoesBack(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Second), base.Add(time.Second)}
	i := 0
	clock := newMonotonicClock(func() time.Time {
		t := ticks[i]
		i++
		return t
	})

	first := clock.Now()
	second := clock.Now()
	third := clock.Now()

	assert.True(t, first.Equal(base))
	assert.True(t, second.Equal(base), "clock must not step backwards")
	assert.True(t, third.Equal(base.Add(time.Second)))
}
