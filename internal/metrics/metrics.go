// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch entry outcomes.
const (
	DispatchMatched   = "matched"
	DispatchUnmatched = "unmatched"
	DispatchMissing   = "missing"
	DispatchInvalid   = "invalid"
	DispatchFailed    = "failed"
)

var (
	initOnce sync.Once

	eventsIngestedCounter  *prometheus.CounterVec
	ingestFailuresCounter  *prometheus.CounterVec
	streamAppendDuration   prometheus.Histogram
	eventPersistDuration   prometheus.Histogram
	triggersActiveGauge    *prometheus.GaugeVec
	runsDispatchedCounter  *prometheus.CounterVec
	dispatchEntriesCounter *prometheus.CounterVec
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		eventsIngestedCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_ingested_total",
				Help: "Total number of ingestion attempts by outcome.",
			},
			[]string{"status"},
		)

		ingestFailuresCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_failures_total",
				Help: "Total number of failed ingestions by error code.",
			},
			[]string{"code"},
		)

		streamAppendDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stream_append_duration_seconds",
				Help:    "Latency of stream log appends in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		eventPersistDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "event_persist_duration_seconds",
				Help:    "Latency of event store inserts in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		triggersActiveGauge = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "triggers_active",
				Help: "Number of active workflow triggers by type.",
			},
			[]string{"type"},
		)

		runsDispatchedCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_runs_dispatched_total",
				Help: "Total number of workflow runs created by trigger type.",
			},
			[]string{"trigger_type"},
		)

		dispatchEntriesCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_entries_total",
				Help: "Total number of stream entries handled by the dispatcher by outcome.",
			},
			[]string{"outcome"},
		)

		prometheus.MustRegister(
			eventsIngestedCounter,
			ingestFailuresCounter,
			streamAppendDuration,
			eventPersistDuration,
			triggersActiveGauge,
			runsDispatchedCounter,
			dispatchEntriesCounter,
		)

		// Ensure vectors are visible at /metrics before first increment.
		for _, status := range []domain.BatchStatus{domain.BatchSuccess, domain.BatchFailed} {
			eventsIngestedCounter.WithLabelValues(string(status))
		}
		for _, code := range []domain.ErrorCode{
			domain.CodeValidation,
			domain.CodeStreamWrite,
			domain.CodePersistence,
		} {
			ingestFailuresCounter.WithLabelValues(string(code))
		}
		for _, typ := range domain.TriggerTypes() {
			triggersActiveGauge.WithLabelValues(string(typ))
			runsDispatchedCounter.WithLabelValues(string(typ))
		}
		for _, outcome := range []string{
			DispatchMatched,
			DispatchUnmatched,
			DispatchMissing,
			DispatchInvalid,
			DispatchFailed,
		} {
			dispatchEntriesCounter.WithLabelValues(outcome)
		}
	})
}

func IncIngested(status domain.BatchStatus) {
	Init()
	eventsIngestedCounter.WithLabelValues(string(status)).Inc()
}

func IncIngestFailure(code domain.ErrorCode) {
	Init()
	ingestFailuresCounter.WithLabelValues(string(code)).Inc()
}

func ObserveStreamAppend(d time.Duration) {
	Init()
	streamAppendDuration.Observe(d.Seconds())
}

func ObserveEventPersist(d time.Duration) {
	Init()
	eventPersistDuration.Observe(d.Seconds())
}

func AddActiveTriggers(typ domain.TriggerType, delta float64) {
	Init()
	triggersActiveGauge.WithLabelValues(string(typ)).Add(delta)
}

func IncRunsDispatched(typ domain.TriggerType) {
	Init()
	runsDispatchedCounter.WithLabelValues(string(typ)).Inc()
}

func IncDispatchEntry(outcome string) {
	Init()
	dispatchEntriesCounter.WithLabelValues(outcome).Inc()
}
