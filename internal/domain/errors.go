// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeValidation    ErrorCode = "VALIDATION_ERROR"
	CodeStreamWrite   ErrorCode = "STREAM_WRITE_ERROR"
	CodePersistence   ErrorCode = "PERSISTENCE_ERROR"
	CodeTriggerConfig ErrorCode = "TRIGGER_CONFIG_ERROR"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrStreamWrite   = errors.New("stream write failed")
	ErrPersistence   = errors.New("persistence failed")
	ErrTriggerConfig = errors.New("invalid trigger configuration")
)

var (
	ErrTriggerAlreadyActive = errors.New("workflow already has an active trigger")
	ErrWebhookPathTaken     = errors.New("webhook path already reserved")
	ErrTriggerNotFound      = errors.New("trigger not found")
	ErrTriggerTypeMismatch  = errors.New("trigger type does not allow this operation")
	ErrInvalidAPIKeyName    = errors.New("invalid api key name")
	ErrAPIKeyNotFound       = errors.New("api key not found")
	ErrWebhookSignature     = errors.New("webhook signature mismatch")
)

// Error carries a typed code so callers never have to inspect messages.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that corresponds to the error code.
func (e *Error) Is(target error) bool {
	return sentinelFor(e.Code) == target
}

func sentinelFor(code ErrorCode) error {
	switch code {
	case CodeValidation:
		return ErrValidation
	case CodeStreamWrite:
		return ErrStreamWrite
	case CodePersistence:
		return ErrPersistence
	case CodeTriggerConfig:
		return ErrTriggerConfig
	default:
		return nil
	}
}

func NewValidationError(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewStreamWriteError(err error) *Error {
	return &Error{Code: CodeStreamWrite, Message: "append to stream log", Err: err}
}

func NewPersistenceError(err error) *Error {
	return &Error{Code: CodePersistence, Message: "persist event", Err: err}
}

func NewTriggerConfigError(format string, args ...any) *Error {
	return &Error{Code: CodeTriggerConfig, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the typed code carried by err, or "" for untyped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
