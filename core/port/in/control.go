// Package in defines inbound ports (driving ports): the control-surface
// contract spec §6 requires, independent of any HTTP binding.
package in

import (
	"context"
	"time"

	"mailsieve/core/domain"
)

// RunStatus is the outcome of a job invocation.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunSkipped RunStatus = "skipped" // permit could not be acquired
)

// RunResult is returned by run() (Ingest) and reclassify() (Bulk Reclassify).
type RunResult struct {
	Status        RunStatus `json:"status"`
	ProcessedCount int      `json:"processed_count"`
	Details       []string  `json:"details,omitempty"`
}

// Engine is the control surface the core exposes (spec §6). The HTTP
// binding (adapter/in/http) is external; this interface is what it calls.
type Engine interface {
	// Run triggers an Ingest pass, bounded by limit.
	Run(ctx context.Context, limit int) (RunResult, error)

	// Reclassify runs a Bulk Reclassify pass, bounded by limit, and returns
	// its result when the pass ends. The HTTP binding calls it in the
	// background and answers "accepted" without waiting for it.
	Reclassify(ctx context.Context, limit int) (RunResult, error)

	// Stats returns per-category counts over an optional time window.
	Stats(ctx context.Context, from, to *time.Time) (map[domain.Category]int, error)

	Notifications(ctx context.Context) ([]*domain.MessageRecord, error)
	Ack(ctx context.Context, ids []string, all bool) error
	// Pop returns the full unread set and marks it read in the same call.
	Pop(ctx context.Context) ([]*domain.MessageRecord, error)
	Read(ctx context.Context, from, to time.Time) ([]*domain.MessageRecord, error)

	// Labels returns the current category snapshot.
	Labels(ctx context.Context) []domain.Category

	// Correct applies an operator correction directly (bypasses
	// reconciliation's own detection, same SetCorrection pathway).
	Correct(ctx context.Context, id string, category domain.Category) error

	Ambiguous(ctx context.Context) ([]*domain.MessageRecord, error)
}
