// SPDX-License-Identifier: Apache-2.0

package domain

type BatchOptions struct {
	ContinueOnError bool `json:"continueOnError"`
}

type BatchStatus string

const (
	BatchSuccess BatchStatus = "success"
	BatchFailed  BatchStatus = "failed"
)

// BatchOutcome reports one attempted event. ID is the resolved id on success
// and whatever the producer supplied on failure (possibly empty).
type BatchOutcome struct {
	ID     string      `json:"id"`
	Status BatchStatus `json:"status"`
	Code   ErrorCode   `json:"code,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// BatchResult summarises an ingestBatch call. Successful+Failed equals the
// number of attempted events, which is less than Total when a fail-fast batch
// stops early.
type BatchResult struct {
	Total      int            `json:"total"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Results    []BatchOutcome `json:"results"`
}
