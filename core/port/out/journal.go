package out

import (
	"context"
	"time"

	"mailsieve/core/domain"
)

// Journal is the durable, single-writer per-message store (spec §4.A).
type Journal interface {
	// Upsert inserts a new row or, if id exists, updates only the
	// classification fields — ReceivedAt, envelope, body, MassMail,
	// AttachmentKinds, PredictedCategory, Confidence. Correction, recheck,
	// and ambiguity columns are preserved. Atomic.
	Upsert(ctx context.Context, rec *domain.MessageRecord) error

	GetByID(ctx context.Context, id string) (*domain.MessageRecord, error)

	// SetCorrection writes CorrectedCategory. Idempotent.
	SetCorrection(ctx context.Context, id string, category domain.Category) error

	// SetRecheck writes LastRecheckAt = now and sets or clears
	// AmbiguousCandidates, atomically.
	SetRecheck(ctx context.Context, id string, ambiguous []domain.Category) error

	// SelectRecheckCandidates returns up to limit records eligible under
	// the gliding-scale policy (spec §4.F), ordered by ReceivedAt descending.
	SelectRecheckCandidates(ctx context.Context, now time.Time, limit int) ([]*domain.MessageRecord, error)

	// SelectUncorrected returns all rows lacking a CorrectedCategory, for
	// Bulk Reclassify (spec §4.I).
	SelectUncorrected(ctx context.Context) ([]*domain.MessageRecord, error)

	Stats(ctx context.Context, from, to *time.Time) (map[domain.Category]int, error)
	Unread(ctx context.Context) ([]*domain.MessageRecord, error)
	Ack(ctx context.Context, ids []string, all bool) error
	// PopUnread returns every unread record and marks exactly those records
	// read in the same call. The read and the mark are separate operations,
	// not one transaction.
	PopUnread(ctx context.Context) ([]*domain.MessageRecord, error)
	ReadInRange(ctx context.Context, from, to time.Time) ([]*domain.MessageRecord, error)
	ListAmbiguous(ctx context.Context) ([]*domain.MessageRecord, error)
	ListUncorrected(ctx context.Context) ([]*domain.MessageRecord, error)
}
