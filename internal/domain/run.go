// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

// Runs are created PENDING; the execution engine owns every later status.
const (
	RunPending RunStatus = "PENDING"
)

type CreateRunParams struct {
	WorkflowID  string
	TriggerID   uuid.UUID
	TriggerType TriggerType
	EventID     string
	BrandID     string
	Input       json.RawMessage
}

type WorkflowRun struct {
	ID          uuid.UUID       `json:"id"`
	WorkflowID  string          `json:"workflowId"`
	TriggerID   uuid.UUID       `json:"triggerId"`
	TriggerType TriggerType     `json:"triggerType"`
	EventID     string          `json:"eventId,omitempty"`
	BrandID     string          `json:"brandId,omitempty"`
	Status      RunStatus       `json:"status"`
	Input       json.RawMessage `json:"input,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}
