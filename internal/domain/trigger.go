// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TriggerType string

const (
	TriggerManual   TriggerType = "MANUAL"
	TriggerSchedule TriggerType = "SCHEDULE"
	TriggerWebhook  TriggerType = "WEBHOOK"
	TriggerEvent    TriggerType = "EVENT"
	TriggerEmail    TriggerType = "EMAIL"
	TriggerDatabase TriggerType = "DATABASE"
)

// TriggerTypes lists the closed set of trigger types.
func TriggerTypes() []TriggerType {
	return []TriggerType{
		TriggerManual,
		TriggerSchedule,
		TriggerWebhook,
		TriggerEvent,
		TriggerEmail,
		TriggerDatabase,
	}
}

// ParseTriggerType accepts any casing and reports whether raw names a known type.
func ParseTriggerType(raw string) (TriggerType, bool) {
	t := TriggerType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range TriggerTypes() {
		if t == known {
			return t, true
		}
	}
	return "", false
}

type TriggerState string

const (
	TriggerActive   TriggerState = "ACTIVE"
	TriggerInactive TriggerState = "INACTIVE"
)

// TriggerSpec is a registration request from the workflow-authoring side.
type TriggerSpec struct {
	Type       TriggerType     `json:"type"`
	WorkflowID string          `json:"workflowId"`
	BrandID    string          `json:"brandId,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
}

// TriggerRecord is the persisted form of a registered trigger.
type TriggerRecord struct {
	ID            uuid.UUID       `json:"id"`
	WorkflowID    string          `json:"workflowId"`
	BrandID       string          `json:"brandId,omitempty"`
	Type          TriggerType     `json:"type"`
	Config        json.RawMessage `json:"config"`
	WebhookPath   string          `json:"webhookPath,omitempty"`
	EventType     string          `json:"eventType,omitempty"`
	State         TriggerState    `json:"state"`
	CreatedAt     time.Time       `json:"createdAt"`
	DeactivatedAt *time.Time      `json:"deactivatedAt,omitempty"`
}
