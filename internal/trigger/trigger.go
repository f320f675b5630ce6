// SPDX-License-Identifier: Apache-2.0

// Package trigger models the ways a workflow run can start and manages the
// listening resources each active trigger holds.
package trigger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
)

// Trigger is one variant of the closed trigger set. Only this package
// implements it.
type Trigger interface {
	Type() domain.TriggerType
	// Validate reports whether the configuration satisfies the type's
	// predicate.
	Validate() bool
	check() error
}

type Manual struct{}

type Schedule struct {
	CronExpression string `json:"cronExpression"`
	Timezone       string `json:"timezone,omitempty"`
}

type Webhook struct {
	Path   string `json:"path"`
	Secret string `json:"secret,omitempty"`
}

// Event fires for stored events whose type matches EventType: an exact type,
// a "prefix.*" namespace or "*". Source, when set, must match exactly.
type Event struct {
	EventType string `json:"eventType"`
	Source    string `json:"source,omitempty"`
}

// Email has no listener yet and accepts any JSON object as configuration.
type Email struct{}

// Database has no listener yet and accepts any JSON object as configuration.
type Database struct{}

func (Manual) Type() domain.TriggerType   { return domain.TriggerManual }
func (Schedule) Type() domain.TriggerType { return domain.TriggerSchedule }
func (Webhook) Type() domain.TriggerType  { return domain.TriggerWebhook }
func (Event) Type() domain.TriggerType    { return domain.TriggerEvent }
func (Email) Type() domain.TriggerType    { return domain.TriggerEmail }
func (Database) Type() domain.TriggerType { return domain.TriggerDatabase }

func (t Manual) Validate() bool   { return t.check() == nil }
func (t Schedule) Validate() bool { return t.check() == nil }
func (t Webhook) Validate() bool  { return t.check() == nil }
func (t Event) Validate() bool    { return t.check() == nil }
func (t Email) Validate() bool    { return t.check() == nil }
func (t Database) Validate() bool { return t.check() == nil }

func (Manual) check() error { return nil }

func (t Schedule) check() error {
	if strings.TrimSpace(t.CronExpression) == "" {
		return domain.NewTriggerConfigError("SCHEDULE trigger requires cronExpression")
	}
	return nil
}

func (t Webhook) check() error {
	if strings.TrimSpace(t.Path) == "" {
		return domain.NewTriggerConfigError("WEBHOOK trigger requires path")
	}
	return nil
}

func (t Event) check() error {
	if strings.TrimSpace(t.EventType) == "" {
		return domain.NewTriggerConfigError("EVENT trigger requires eventType")
	}
	return nil
}

func (Email) check() error    { return nil }
func (Database) check() error { return nil }

// New decodes raw into the variant for typ. Every value of the closed type
// set maps to exactly one variant; anything else is a configuration error.
func New(typ domain.TriggerType, raw json.RawMessage) (Trigger, error) {
	switch typ {
	case domain.TriggerManual:
		return Manual{}, nil
	case domain.TriggerSchedule:
		var t Schedule
		if err := decodeConfig(typ, raw, &t); err != nil {
			return nil, err
		}
		return t, nil
	case domain.TriggerWebhook:
		var t Webhook
		if err := decodeConfig(typ, raw, &t); err != nil {
			return nil, err
		}
		return t, nil
	case domain.TriggerEvent:
		var t Event
		if err := decodeConfig(typ, raw, &t); err != nil {
			return nil, err
		}
		return t, nil
	case domain.TriggerEmail:
		if err := decodeConfig(typ, raw, &map[string]any{}); err != nil {
			return nil, err
		}
		return Email{}, nil
	case domain.TriggerDatabase:
		if err := decodeConfig(typ, raw, &map[string]any{}); err != nil {
			return nil, err
		}
		return Database{}, nil
	default:
		return nil, domain.NewTriggerConfigError("unknown trigger type %q", typ)
	}
}

// Validate is the registration predicate for a raw (type, config) pair.
func Validate(typ domain.TriggerType, raw json.RawMessage) bool {
	t, err := New(typ, raw)
	if err != nil {
		return false
	}
	return t.Validate()
}

// Check is Validate with the reason for a rejection.
func Check(typ domain.TriggerType, raw json.RawMessage) (Trigger, error) {
	t, err := New(typ, raw)
	if err != nil {
		return nil, err
	}
	if err := t.check(); err != nil {
		return nil, err
	}
	return t, nil
}

func decodeConfig(typ domain.TriggerType, raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.NewTriggerConfigError("%s trigger config is malformed: %v", typ, err)
	}
	return nil
}

// MatchesEvent reports whether the EVENT trigger subscribes to the event.
func (t Event) MatchesEvent(eventType, source string) bool {
	if t.Source != "" && t.Source != source {
		return false
	}

	pattern := strings.TrimSpace(t.EventType)
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*"))
	default:
		return pattern == eventType
	}
}

func (t Schedule) spec() string {
	expr := strings.TrimSpace(t.CronExpression)
	if tz := strings.TrimSpace(t.Timezone); tz != "" {
		return fmt.Sprintf("CRON_TZ=%s %s", tz, expr)
	}
	return expr
}
