// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
)

// memStore is an in-memory Store with the same uniqueness rules as Postgres.
type memStore struct {
	mu        sync.Mutex
	records   []domain.TriggerRecord
	createErr error
}

func (m *memStore) CreateActive(_ context.Context, rec domain.TriggerRecord) (domain.TriggerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return domain.TriggerRecord{}, m.createErr
	}
	for _, existing := range m.records {
		if existing.State != domain.TriggerActive {
			continue
		}
		if existing.WorkflowID == rec.WorkflowID {
			return domain.TriggerRecord{}, domain.ErrTriggerAlreadyActive
		}
		if rec.Type == domain.TriggerWebhook && existing.Type == domain.TriggerWebhook && existing.WebhookPath == rec.WebhookPath {
			return domain.TriggerRecord{}, domain.ErrWebhookPathTaken
		}
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.State = domain.TriggerActive
	rec.CreatedAt = time.Now().UTC()
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memStore) Deactivate(_ context.Context, workflowID string) (domain.TriggerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, rec := range m.records {
		if rec.WorkflowID == workflowID && rec.State == domain.TriggerActive {
			now := time.Now().UTC()
			m.records[i].State = domain.TriggerInactive
			m.records[i].DeactivatedAt = &now
			return m.records[i], nil
		}
	}
	return domain.TriggerRecord{}, domain.ErrTriggerNotFound
}

func (m *memStore) GetActiveByWorkflow(_ context.Context, workflowID string) (domain.TriggerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.records {
		if rec.WorkflowID == workflowID && rec.State == domain.TriggerActive {
			return rec, nil
		}
	}
	return domain.TriggerRecord{}, domain.ErrTriggerNotFound
}

func (m *memStore) ListActive(_ context.Context, typ domain.TriggerType) ([]domain.TriggerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.TriggerRecord
	for _, rec := range m.records {
		if rec.State == domain.TriggerActive && (typ == "" || rec.Type == typ) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) activeCount() int {
	recs, _ := m.ListActive(context.Background(), "")
	return len(recs)
}

var errStoreDown = errors.New("store down")
