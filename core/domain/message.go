// Package domain models the journal's single aggregate: a classified mail
// message and the closed set of categories the classifier knows about.
package domain

import "time"

// Category is a symbolic name drawn from the classifier's enumerated set.
// Categories are hierarchical strings separated by "/".
type Category string

// CategorySet is the classifier's known category set, snapshotted once per
// job (spec §4.C, §9 — a model update mid-job must not be observed until
// the next job).
type CategorySet map[Category]struct{}

// NewCategorySet builds a CategorySet from a slice of category names.
func NewCategorySet(categories []Category) CategorySet {
	set := make(CategorySet, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return set
}

// Contains reports whether c is a member of the set.
func (s CategorySet) Contains(c Category) bool {
	_, ok := s[c]
	return ok
}

// Slice returns the set's members in no particular order.
func (s CategorySet) Slice() []Category {
	out := make([]Category, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}

// MessageRecord is the journal's unit, per spec §3.
type MessageRecord struct {
	ID         string    // opaque stable per-message identifier from the gateway
	ReceivedAt time.Time // original message timestamp, falls back to ingest time

	Sender    string
	Recipient string
	Cc        string
	Subject   string
	Body      string

	MassMail        bool
	AttachmentKinds []string // ordered-unique uppercase extension tags

	PredictedCategory Category
	Confidence        float64

	CorrectedCategory   *Category  // set by reconciliation or operator
	LastRecheckAt       *time.Time // timestamp of last successful reconciliation pass
	AmbiguousCandidates []Category // non-nil iff last reconciliation was inconclusive

	IsRead bool // notification-UI acknowledgement bit, orthogonal to classification
}

// TrueCategory returns the journaled truth: the corrected category if one
// has been set, else the predicted category (spec §4.F: local = corrected
// ?? predicted).
func (m *MessageRecord) TrueCategory() Category {
	if m.CorrectedCategory != nil {
		return *m.CorrectedCategory
	}
	return m.PredictedCategory
}

// IsAmbiguous reports whether the last reconciliation pass left the record
// in the ambiguous state.
func (m *MessageRecord) IsAmbiguous() bool {
	return m.AmbiguousCandidates != nil
}

// TrainingLine is a write-once append to a per-category log (spec §3, §6).
// Field names and casing are fixed by the external training-data line
// format and must not be changed.
type TrainingLine struct {
	Subject         string   `json:"subject"`
	Body            string   `json:"body"`
	From            string   `json:"from"`
	To              string   `json:"to"`
	Cc              string   `json:"cc"`
	MassMail        bool     `json:"mass_mail"`
	AttachmentTypes []string `json:"attachment_types"`
}
