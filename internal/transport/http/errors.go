// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/auth"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
)

const (
	codeNotFound         = "NOT_FOUND"
	codeConflict         = "CONFLICT"
	codeInvalidSignature = "INVALID_SIGNATURE"
	codeInternal         = "INTERNAL_ERROR"
	codeUnavailable      = "UNAVAILABLE"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, string(domain.CodeValidation), message)
}

// writeDomainError maps service errors onto HTTP statuses. Unclassified
// errors are logged and reported without detail.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrTriggerConfig):
		writeError(w, http.StatusBadRequest, string(domain.CodeOf(err)), domain.MessageOf(err))
	case errors.Is(err, auth.ErrBrandOutOfScope):
		badRequest(w, err.Error())
	case errors.Is(err, domain.ErrTriggerNotFound), errors.Is(err, domain.ErrAPIKeyNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrTriggerAlreadyActive),
		errors.Is(err, domain.ErrWebhookPathTaken),
		errors.Is(err, domain.ErrTriggerTypeMismatch):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, domain.ErrWebhookSignature):
		writeError(w, http.StatusUnauthorized, codeInvalidSignature, err.Error())
	case errors.Is(err, domain.ErrStreamWrite):
		logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, string(domain.CodeStreamWrite), domain.MessageOf(err))
	case errors.Is(err, domain.ErrPersistence):
		logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, string(domain.CodePersistence), domain.MessageOf(err))
	default:
		logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, op+" failed")
	}
}
