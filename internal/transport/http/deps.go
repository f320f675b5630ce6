// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/auth"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
)

type EventIngestor interface {
	IngestEvent(ctx context.Context, ev domain.Event) (domain.ProcessedEvent, error)
	IngestBatch(ctx context.Context, events []domain.Event, opts domain.BatchOptions) domain.BatchResult
	EventStats(ctx context.Context, brandID string) (map[string]int64, error)
	ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.ProcessedEvent, error)
}

type TriggerRegistry interface {
	Register(ctx context.Context, spec domain.TriggerSpec) (domain.TriggerRecord, error)
	Deactivate(ctx context.Context, workflowID string) (domain.TriggerRecord, error)
	Get(ctx context.Context, workflowID string) (domain.TriggerRecord, error)
	List(ctx context.Context, typ domain.TriggerType) ([]domain.TriggerRecord, error)
}

type RunDispatcher interface {
	FireManual(ctx context.Context, workflowID string, input json.RawMessage) (domain.WorkflowRun, error)
	FireWebhook(ctx context.Context, path string, body []byte, signature string) (domain.WorkflowRun, error)
	ListRuns(ctx context.Context, workflowID string, limit int) ([]domain.WorkflowRun, error)
}

type APIKeyResolver interface {
	ResolveAPIKey(ctx context.Context, bearerToken string) (auth.APIKey, bool, error)
}

type APIKeyManager interface {
	CreateAPIKey(ctx context.Context, params domain.CreateAPIKeyParams) (domain.CreatedAPIKey, error)
	ListAPIKeys(ctx context.Context, brandID string) ([]domain.APIKeyRecord, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

type HealthChecker interface {
	Check(ctx context.Context) error
}

// HealthCheckFunc adapts a plain function, such as a stream Ping, to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Check(ctx context.Context) error {
	return f(ctx)
}
