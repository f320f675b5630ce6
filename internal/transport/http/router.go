// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/metrics"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/transport/middleware"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/trigger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultMaxBatch  = 1000
	maxWebhookBody   = 1 << 20
	maxRequestBody   = 8 << 20
	defaultRunsLimit = 100
)

type batchRequest struct {
	Events  []domain.Event      `json:"events"`
	Options domain.BatchOptions `json:"options"`
}

type validateTriggerRequest struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

type createAPIKeyRequest struct {
	Name              string `json:"name"`
	BrandID           string `json:"brand_id"`
	MaxRequestsPerMin int    `json:"max_requests_per_min"`
}

type Deps struct {
	Ingest         EventIngestor
	Triggers       TriggerRegistry
	Runs           RunDispatcher
	APIKeyAdmin    APIKeyManager
	APIKeyResolver APIKeyResolver
	ReadyChecks    map[string]HealthChecker
	Logger         *slog.Logger
	AdminToken     string
	MaxBatch       int
	Version        string
	Commit         string
	BuildDate      string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")
	maxBatch := deps.MaxBatch
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatch
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		failures := map[string]string{}
		for name, check := range deps.ReadyChecks {
			if err := check.Check(r.Context()); err != nil {
				logger.Warn("readiness check failed", "check", name, "error", err)
				failures[name] = err.Error()
			}
		}
		if len(failures) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"checks": failures,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- API KEY LIFECYCLE (ADMIN) ----------------

	if deps.APIKeyAdmin != nil {
		r.Route("/api-keys", func(admin chi.Router) {
			admin.Use(middleware.AdminTokenAuth(deps.AdminToken, logger))

			admin.Post("/", func(w http.ResponseWriter, r *http.Request) {
				var req createAPIKeyRequest
				if err := decodeJSON(r, &req, true); err != nil {
					badRequest(w, "invalid request body")
					return
				}
				req.Name = strings.TrimSpace(req.Name)
				if req.Name == "" {
					badRequest(w, domain.ErrInvalidAPIKeyName.Error())
					return
				}

				created, err := deps.APIKeyAdmin.CreateAPIKey(r.Context(), domain.CreateAPIKeyParams{
					Name:              req.Name,
					BrandID:           strings.TrimSpace(req.BrandID),
					MaxRequestsPerMin: req.MaxRequestsPerMin,
				})
				if err != nil {
					if errors.Is(err, domain.ErrInvalidAPIKeyName) {
						badRequest(w, err.Error())
						return
					}
					writeDomainError(w, logger, "create api key", err)
					return
				}

				writeJSON(w, http.StatusCreated, map[string]string{
					"api_key_id": created.ID.String(),
					"token":      created.Token,
				})
			})

			admin.Get("/", func(w http.ResponseWriter, r *http.Request) {
				keys, err := deps.APIKeyAdmin.ListAPIKeys(r.Context(), r.URL.Query().Get("brand_id"))
				if err != nil {
					writeDomainError(w, logger, "list api keys", err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"api_keys": keys})
			})

			admin.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
				id, err := uuid.Parse(chi.URLParam(r, "id"))
				if err != nil {
					badRequest(w, "invalid api key ID")
					return
				}

				if err := deps.APIKeyAdmin.RevokeAPIKey(r.Context(), id); err != nil {
					writeDomainError(w, logger, "revoke api key", err)
					return
				}

				w.WriteHeader(http.StatusNoContent)
			})
		})
	}

	// ---------------- WEBHOOK TRIGGERS ----------------

	if deps.Runs != nil {
		r.Post(trigger.WebhookPrefix+"/*", func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
			if err != nil {
				badRequest(w, "unreadable request body")
				return
			}
			if len(body) > maxWebhookBody {
				writeError(w, http.StatusRequestEntityTooLarge, string(domain.CodeValidation), "request body too large")
				return
			}

			path := "/" + chi.URLParam(r, "*")
			run, err := deps.Runs.FireWebhook(r.Context(), path, body, r.Header.Get(trigger.SignatureHeader))
			if err != nil {
				if errors.Is(err, domain.ErrWebhookSignature) {
					logger.Warn("webhook signature rejected",
						"path", path,
						"remote_addr", r.RemoteAddr,
					)
				}
				writeDomainError(w, logger, "fire webhook", err)
				return
			}

			writeJSON(w, http.StatusAccepted, run)
		})
	}

	// ---------------- EVENTS & TRIGGERS (API KEY AUTH) ----------------

	r.Group(func(r chi.Router) {
		if deps.APIKeyResolver != nil {
			r.Use(middleware.APITokenAuth(deps.APIKeyResolver, logger))
		}

		// ---------------- INGEST ----------------

		r.Post("/events", func(w http.ResponseWriter, r *http.Request) {
			var ev domain.Event
			if err := decodeJSON(r, &ev, false); err != nil {
				badRequest(w, "invalid request body")
				return
			}

			processed, err := deps.Ingest.IngestEvent(r.Context(), ev)
			if err != nil {
				writeDomainError(w, logger, "ingest event", err)
				return
			}

			writeJSON(w, http.StatusCreated, processed)
		})

		r.Post("/events/batch", func(w http.ResponseWriter, r *http.Request) {
			var req batchRequest
			if err := decodeJSON(r, &req, false); err != nil {
				badRequest(w, "invalid request body")
				return
			}
			if len(req.Events) > maxBatch {
				badRequest(w, fmt.Sprintf("batch exceeds %d events", maxBatch))
				return
			}

			writeJSON(w, http.StatusOK, deps.Ingest.IngestBatch(r.Context(), req.Events, req.Options))
		})

		r.Get("/events/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := deps.Ingest.EventStats(r.Context(), strings.TrimSpace(r.URL.Query().Get("brandId")))
			if err != nil {
				writeDomainError(w, logger, "event stats", err)
				return
			}
			writeJSON(w, http.StatusOK, stats)
		})

		r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
			filter, err := parseEventFilter(r)
			if err != nil {
				badRequest(w, err.Error())
				return
			}

			events, err := deps.Ingest.ListEvents(r.Context(), filter)
			if err != nil {
				writeDomainError(w, logger, "list events", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"events": events})
		})

		// ---------------- TRIGGERS ----------------

		r.Post("/triggers", func(w http.ResponseWriter, r *http.Request) {
			var spec domain.TriggerSpec
			if err := decodeJSON(r, &spec, true); err != nil {
				badRequest(w, "invalid request body")
				return
			}

			rec, err := deps.Triggers.Register(r.Context(), spec)
			if err != nil {
				writeDomainError(w, logger, "register trigger", err)
				return
			}
			writeJSON(w, http.StatusCreated, rec)
		})

		r.Post("/triggers/validate", func(w http.ResponseWriter, r *http.Request) {
			var req validateTriggerRequest
			if err := decodeJSON(r, &req, true); err != nil {
				badRequest(w, "invalid request body")
				return
			}

			typ, ok := domain.ParseTriggerType(req.Type)
			writeJSON(w, http.StatusOK, map[string]bool{
				"valid": ok && trigger.Validate(typ, req.Config),
			})
		})

		r.Get("/triggers", func(w http.ResponseWriter, r *http.Request) {
			var typ domain.TriggerType
			if raw := r.URL.Query().Get("type"); raw != "" {
				parsed, ok := domain.ParseTriggerType(raw)
				if !ok {
					badRequest(w, fmt.Sprintf("unknown trigger type %q", raw))
					return
				}
				typ = parsed
			}

			records, err := deps.Triggers.List(r.Context(), typ)
			if err != nil {
				writeDomainError(w, logger, "list triggers", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"triggers": records})
		})

		r.Route("/workflows/{workflowId}", func(r chi.Router) {
			r.Get("/trigger", func(w http.ResponseWriter, r *http.Request) {
				rec, err := deps.Triggers.Get(r.Context(), chi.URLParam(r, "workflowId"))
				if err != nil {
					writeDomainError(w, logger, "get trigger", err)
					return
				}
				writeJSON(w, http.StatusOK, rec)
			})

			r.Delete("/trigger", func(w http.ResponseWriter, r *http.Request) {
				rec, err := deps.Triggers.Deactivate(r.Context(), chi.URLParam(r, "workflowId"))
				if err != nil {
					writeDomainError(w, logger, "deactivate trigger", err)
					return
				}
				writeJSON(w, http.StatusOK, rec)
			})

			// ---------------- RUNS ----------------

			r.Post("/runs", func(w http.ResponseWriter, r *http.Request) {
				input, err := readJSONInput(r)
				if err != nil {
					badRequest(w, err.Error())
					return
				}

				run, err := deps.Runs.FireManual(r.Context(), chi.URLParam(r, "workflowId"), input)
				if err != nil {
					writeDomainError(w, logger, "fire manual trigger", err)
					return
				}
				writeJSON(w, http.StatusCreated, run)
			})

			r.Get("/runs", func(w http.ResponseWriter, r *http.Request) {
				limit := defaultRunsLimit
				if raw := r.URL.Query().Get("limit"); raw != "" {
					n, err := strconv.Atoi(raw)
					if err != nil || n <= 0 {
						badRequest(w, "limit must be a positive integer")
						return
					}
					limit = n
				}

				runs, err := deps.Runs.ListRuns(r.Context(), chi.URLParam(r, "workflowId"), limit)
				if err != nil {
					writeDomainError(w, logger, "list runs", err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads exactly one JSON object from the body. Strict decoding
// rejects unknown fields.
func decodeJSON(r *http.Request, dst any, strict bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.New("request body is required")
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}
	return nil
}

// readJSONInput returns the raw body as run input; an empty body means no input.
func readJSONInput(r *http.Request) (json.RawMessage, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return nil, errors.New("unreadable request body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, errors.New("run input must be JSON")
	}
	return body, nil
}

func parseEventFilter(r *http.Request) (domain.EventFilter, error) {
	q := r.URL.Query()
	filter := domain.EventFilter{
		Type:    strings.TrimSpace(q.Get("type")),
		Source:  strings.TrimSpace(q.Get("source")),
		BrandID: strings.TrimSpace(q.Get("brandId")),
	}

	var err error
	if filter.From, err = parseTimeParam(q.Get("from")); err != nil {
		return domain.EventFilter{}, fmt.Errorf("invalid from: %w", err)
	}
	if filter.To, err = parseTimeParam(q.Get("to")); err != nil {
		return domain.EventFilter{}, fmt.Errorf("invalid to: %w", err)
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return domain.EventFilter{}, errors.New("limit must be a positive integer")
		}
		filter.Limit = n
	}
	return filter, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}
