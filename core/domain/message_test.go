package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrueCategory(t *testing.T) {
	rec := &MessageRecord{PredictedCategory: "NOISE"}
	assert.Equal(t, Category("NOISE"), rec.TrueCategory(), "falls back to predicted when no correction")

	corrected := Category("FOCUS")
	rec.CorrectedCategory = &corrected
	assert.Equal(t, Category("FOCUS"), rec.TrueCategory(), "corrected takes precedence")
}

func TestIsAmbiguous(t *testing.T) {
	rec := &MessageRecord{}
	assert.False(t, rec.IsAmbiguous())

	rec.AmbiguousCandidates = []Category{"FOCUS", "URGENT"}
	assert.True(t, rec.IsAmbiguous())

	rec.AmbiguousCandidates = []Category{}
	assert.True(t, rec.IsAmbiguous(), "a non-nil empty slice is still ambiguous, per spec §3's nil-ness test")
}

func TestCategorySet(t *testing.T) {
	set := NewCategorySet([]Category{"URGENT", "FOCUS", "URGENT"})
	assert.True(t, set.Contains("URGENT"))
	assert.True(t, set.Contains("FOCUS"))
	assert.False(t, set.Contains("NOISE"))
	assert.Len(t, set.Slice(), 2, "duplicate input collapses to a set")
}

func TestMessageRecordLastRecheckAt(t *testing.T) {
	rec := &MessageRecord{}
	assert.Nil(t, rec.LastRecheckAt)

	now := time.Now().UTC()
	rec.LastRecheckAt = &now
	assert.Equal(t, now, *rec.LastRecheckAt)
}
