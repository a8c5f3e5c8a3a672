// Package persistence adapts the domain's Journal port onto an embedded
// SQLite table, grounded on original_source/email_classifier_brain/database.py's
// schema and additive-migration policy, wired through sqlx the way the
// teacher wires its relational adapters (row struct + toEntity, explicit
// context-bound queries).
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"mailsieve/core/domain"
	out "mailsieve/core/port/out"
	"mailsieve/pkg/apperr"
)

const timeLayout = time.RFC3339Nano

// messageRow is the wire shape of one `messages` row: sqlx scans directly
// into this, then toEntity() converts it to the domain aggregate.
type messageRow struct {
	ID                  string         `db:"id"`
	ReceivedAt          string         `db:"received_at"`
	Sender              string         `db:"sender"`
	Recipient           string         `db:"recipient"`
	Cc                  string         `db:"cc"`
	Subject             string         `db:"subject"`
	Body                string         `db:"body"`
	MassMail            bool           `db:"mass_mail"`
	AttachmentKinds     string         `db:"attachment_kinds"` // JSON array
	PredictedCategory   string         `db:"predicted_category"`
	Confidence          float64        `db:"confidence"`
	CorrectedCategory   sql.NullString `db:"corrected_category"`
	IsRead              bool           `db:"is_read"`
	LastRecheckAt       sql.NullString `db:"last_recheck_at"`
	AmbiguousCandidates sql.NullString `db:"ambiguous_candidates"` // JSON array, NULL if not ambiguous
}

func (r *messageRow) toEntity() (*domain.MessageRecord, error) {
	receivedAt, err := time.Parse(timeLayout, r.ReceivedAt)
	if err != nil {
		return nil, fmt.Errorf("parse received_at: %w", err)
	}

	var kinds []string
	if r.AttachmentKinds != "" {
		if err := json.Unmarshal([]byte(r.AttachmentKinds), &kinds); err != nil {
			return nil, fmt.Errorf("parse attachment_kinds: %w", err)
		}
	}

	rec := &domain.MessageRecord{
		ID:                r.ID,
		ReceivedAt:        receivedAt,
		Sender:            r.Sender,
		Recipient:         r.Recipient,
		Cc:                r.Cc,
		Subject:           r.Subject,
		Body:              r.Body,
		MassMail:          r.MassMail,
		AttachmentKinds:   kinds,
		PredictedCategory: domain.Category(r.PredictedCategory),
		Confidence:        r.Confidence,
		IsRead:            r.IsRead,
	}

	if r.CorrectedCategory.Valid {
		cat := domain.Category(r.CorrectedCategory.String)
		rec.CorrectedCategory = &cat
	}
	if r.LastRecheckAt.Valid {
		t, err := time.Parse(timeLayout, r.LastRecheckAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_recheck_at: %w", err)
		}
		rec.LastRecheckAt = &t
	}
	if r.AmbiguousCandidates.Valid {
		var cats []domain.Category
		if err := json.Unmarshal([]byte(r.AmbiguousCandidates.String), &cats); err != nil {
			return nil, fmt.Errorf("parse ambiguous_candidates: %w", err)
		}
		rec.AmbiguousCandidates = cats
	}

	return rec, nil
}

// Journal is the sqlite-backed implementation of out.Journal.
type Journal struct {
	db *sqlx.DB
}

// NewJournal wraps an already-open database handle, running the additive
// migration described in database.py's init_db before returning.
func NewJournal(ctx context.Context, db *sqlx.DB) (*Journal, error) {
	if err := migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("migrate journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	var idType string
	err := db.GetContext(ctx, &idType, `
		SELECT type FROM pragma_table_info('messages') WHERE name = 'id'
	`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if idType != "" && !strings.EqualFold(idType, "TEXT") {
		// Pre-existing table keyed by the wrong type (e.g. a migrated
		// INTEGER-keyed schema); the journal is regenerable from the
		// mailbox, so a one-time drop-and-recreate is acceptable (spec §4.A).
		if _, err := db.ExecContext(ctx, `DROP TABLE messages`); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id                   TEXT PRIMARY KEY,
			received_at          TEXT NOT NULL,
			sender               TEXT,
			recipient            TEXT,
			cc                   TEXT,
			subject              TEXT,
			body                 TEXT,
			mass_mail            BOOLEAN NOT NULL DEFAULT 0,
			attachment_kinds     TEXT NOT NULL DEFAULT '[]',
			predicted_category   TEXT NOT NULL,
			confidence           REAL NOT NULL DEFAULT 0,
			corrected_category   TEXT,
			is_read              BOOLEAN NOT NULL DEFAULT 0,
			last_recheck_at      TEXT,
			ambiguous_candidates TEXT
		)
	`); err != nil {
		return err
	}

	var existing []string
	if err := db.SelectContext(ctx, &existing, `SELECT name FROM pragma_table_info('messages')`); err != nil {
		return err
	}
	have := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		have[name] = struct{}{}
	}

	additive := []string{
		"last_recheck_at TEXT",
		"ambiguous_candidates TEXT",
		"is_read BOOLEAN NOT NULL DEFAULT 0",
	}
	for _, col := range additive {
		name := strings.Fields(col)[0]
		if _, ok := have[name]; ok {
			continue
		}
		if _, err := db.ExecContext(ctx, `ALTER TABLE messages ADD COLUMN `+col); err != nil {
			return err
		}
	}

	return nil
}

// Upsert implements out.Journal: inserts or updates only the
// classification-related columns, preserving correction/recheck/ambiguity/
// read-state columns on conflict (spec invariant 1).
func (j *Journal) Upsert(ctx context.Context, rec *domain.MessageRecord) error {
	kinds, err := json.Marshal(rec.AttachmentKinds)
	if err != nil {
		return apperr.Storage("upsert", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, received_at, sender, recipient, cc, subject, body,
			mass_mail, attachment_kinds, predicted_category, confidence, is_read
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			received_at=excluded.received_at,
			sender=excluded.sender,
			recipient=excluded.recipient,
			cc=excluded.cc,
			subject=excluded.subject,
			body=excluded.body,
			mass_mail=excluded.mass_mail,
			attachment_kinds=excluded.attachment_kinds,
			predicted_category=excluded.predicted_category,
			confidence=excluded.confidence
	`,
		rec.ID, rec.ReceivedAt.Format(timeLayout), rec.Sender, rec.Recipient, rec.Cc, rec.Subject, rec.Body,
		rec.MassMail, string(kinds), string(rec.PredictedCategory), rec.Confidence,
	)
	if err != nil {
		return apperr.Storage("upsert", err)
	}
	return nil
}

// GetByID implements out.Journal.
func (j *Journal) GetByID(ctx context.Context, id string) (*domain.MessageRecord, error) {
	var row messageRow
	err := j.db.GetContext(ctx, &row, `SELECT * FROM messages WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("get_by_id", err)
	}
	return row.toEntity()
}

// SetCorrection implements out.Journal.
func (j *Journal) SetCorrection(ctx context.Context, id string, category domain.Category) error {
	_, err := j.db.ExecContext(ctx, `UPDATE messages SET corrected_category = ? WHERE id = ?`, string(category), id)
	if err != nil {
		return apperr.Storage("set_correction", err)
	}
	return nil
}

// SetRecheck implements out.Journal.
func (j *Journal) SetRecheck(ctx context.Context, id string, ambiguous []domain.Category) error {
	var amb sql.NullString
	if len(ambiguous) > 0 {
		b, err := json.Marshal(ambiguous)
		if err != nil {
			return apperr.Storage("set_recheck", err)
		}
		amb = sql.NullString{String: string(b), Valid: true}
	}

	_, err := j.db.ExecContext(ctx, `
		UPDATE messages SET last_recheck_at = ?, ambiguous_candidates = ? WHERE id = ?
	`, time.Now().UTC().Format(timeLayout), amb, id)
	if err != nil {
		return apperr.Storage("set_recheck", err)
	}
	return nil
}

// SelectRecheckCandidates implements out.Journal's gliding-scale query
// (spec §4.F), ported directly from database.py's
// get_candidate_logs_for_recheck banding.
func (j *Journal) SelectRecheckCandidates(ctx context.Context, now time.Time, limit int) ([]*domain.MessageRecord, error) {
	t1d := now.Add(-24 * time.Hour).Format(timeLayout)
	t7d := now.Add(-7 * 24 * time.Hour).Format(timeLayout)
	t30d := now.Add(-30 * 24 * time.Hour).Format(timeLayout)

	r12h := now.Add(-12 * time.Hour).Format(timeLayout)
	r24h := now.Add(-24 * time.Hour).Format(timeLayout)
	r7d := now.Add(-7 * 24 * time.Hour).Format(timeLayout)
	r30d := now.Add(-30 * 24 * time.Hour).Format(timeLayout)

	var rows []messageRow
	err := j.db.SelectContext(ctx, &rows, `
		SELECT * FROM messages
		WHERE
			(received_at > ? AND (last_recheck_at IS NULL OR last_recheck_at < ?))
			OR
			(received_at <= ? AND received_at > ? AND (last_recheck_at IS NULL OR last_recheck_at < ?))
			OR
			(received_at <= ? AND received_at > ? AND (last_recheck_at IS NULL OR last_recheck_at < ?))
			OR
			(received_at <= ? AND (last_recheck_at IS NULL OR last_recheck_at < ?))
		ORDER BY received_at DESC
		LIMIT ?
	`,
		t1d, r12h,
		t1d, t7d, r24h,
		t7d, t30d, r7d,
		t30d, r30d,
		limit,
	)
	if err != nil {
		return nil, apperr.Storage("select_recheck_candidates", err)
	}
	return toEntities(rows)
}

// SelectUncorrected implements out.Journal.
func (j *Journal) SelectUncorrected(ctx context.Context) ([]*domain.MessageRecord, error) {
	var rows []messageRow
	err := j.db.SelectContext(ctx, &rows, `SELECT * FROM messages WHERE corrected_category IS NULL`)
	if err != nil {
		return nil, apperr.Storage("select_uncorrected", err)
	}
	return toEntities(rows)
}

// Stats implements out.Journal.
func (j *Journal) Stats(ctx context.Context, from, to *time.Time) (map[domain.Category]int, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT predicted_category, COUNT(*) as count FROM messages`)
	var args []any
	var conditions []string
	if from != nil {
		conditions = append(conditions, "received_at >= ?")
		args = append(args, from.Format(timeLayout))
	}
	if to != nil {
		conditions = append(conditions, "received_at <= ?")
		args = append(args, to.Format(timeLayout))
	}
	if len(conditions) > 0 {
		query.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	query.WriteString(" GROUP BY predicted_category")

	rows, err := j.db.QueryxContext(ctx, query.String(), args...)
	if err != nil {
		return nil, apperr.Storage("stats", err)
	}
	defer rows.Close()

	result := make(map[domain.Category]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, apperr.Storage("stats", err)
		}
		result[domain.Category(category)] = count
	}
	return result, rows.Err()
}

// Unread implements out.Journal.
func (j *Journal) Unread(ctx context.Context) ([]*domain.MessageRecord, error) {
	var rows []messageRow
	err := j.db.SelectContext(ctx, &rows, `SELECT * FROM messages WHERE is_read = 0 ORDER BY received_at DESC`)
	if err != nil {
		return nil, apperr.Storage("unread", err)
	}
	return toEntities(rows)
}

// Ack implements out.Journal.
func (j *Journal) Ack(ctx context.Context, ids []string, all bool) error {
	if all || len(ids) == 0 {
		_, err := j.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE is_read = 0`)
		if err != nil {
			return apperr.Storage("ack", err)
		}
		return nil
	}

	query, args, err := sqlx.In(`UPDATE messages SET is_read = 1 WHERE id IN (?)`, ids)
	if err != nil {
		return apperr.Storage("ack", err)
	}
	_, err = j.db.ExecContext(ctx, j.db.Rebind(query), args...)
	if err != nil {
		return apperr.Storage("ack", err)
	}
	return nil
}

// PopUnread implements out.Journal: returns the full unread set and marks
// it read in the same call, matching database.py's pop_unread_notifications.
func (j *Journal) PopUnread(ctx context.Context) ([]*domain.MessageRecord, error) {
	unread, err := j.Unread(ctx)
	if err != nil {
		return nil, err
	}
	if len(unread) == 0 {
		return nil, nil
	}
	ids := make([]string, len(unread))
	for i, rec := range unread {
		ids[i] = rec.ID
	}
	if err := j.Ack(ctx, ids, false); err != nil {
		return nil, err
	}
	return unread, nil
}

// ReadInRange implements out.Journal.
func (j *Journal) ReadInRange(ctx context.Context, from, to time.Time) ([]*domain.MessageRecord, error) {
	var rows []messageRow
	err := j.db.SelectContext(ctx, &rows, `
		SELECT * FROM messages
		WHERE is_read = 1 AND received_at >= ? AND received_at <= ?
		ORDER BY received_at DESC
	`, from.Format(timeLayout), to.Format(timeLayout))
	if err != nil {
		return nil, apperr.Storage("read_in_range", err)
	}
	return toEntities(rows)
}

// ListAmbiguous implements out.Journal.
func (j *Journal) ListAmbiguous(ctx context.Context) ([]*domain.MessageRecord, error) {
	var rows []messageRow
	err := j.db.SelectContext(ctx, &rows, `
		SELECT * FROM messages WHERE ambiguous_candidates IS NOT NULL ORDER BY received_at DESC
	`)
	if err != nil {
		return nil, apperr.Storage("list_ambiguous", err)
	}
	return toEntities(rows)
}

// ListUncorrected implements out.Journal (the same predicate as
// SelectUncorrected, without the Bulk Reclassify naming).
func (j *Journal) ListUncorrected(ctx context.Context) ([]*domain.MessageRecord, error) {
	return j.SelectUncorrected(ctx)
}

func toEntities(rows []messageRow) ([]*domain.MessageRecord, error) {
	out := make([]*domain.MessageRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toEntity()
		if err != nil {
			return nil, apperr.Storage("scan_row", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

var _ out.Journal = (*Journal)(nil)
