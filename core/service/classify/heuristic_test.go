package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mailsieve/core/domain"
	out "mailsieve/core/port/out"
)

func TestHeuristicCategories(t *testing.T) {
	h := NewHeuristic()
	known := h.Categories()
	for _, c := range []domain.Category{"URGENT", "FOCUS", "REFERENCE", "NOISE"} {
		assert.True(t, known.Contains(c))
	}
}

func TestHeuristicPredictUrgent(t *testing.T) {
	h := NewHeuristic()
	f := out.Features{Role: "Direct", Subject: "Server down, action required ASAP"}
	cat, conf, err := h.Predict(f)
	assert.NoError(t, err)
	assert.Equal(t, CategoryUrgent, cat)
	assert.Greater(t, conf, 0.5)
}

func TestHeuristicPredictNoise(t *testing.T) {
	h := NewHeuristic()
	f := out.Features{Role: "Hidden", MassMail: true, Subject: "50% off sale - unsubscribe anytime"}
	cat, _, err := h.Predict(f)
	assert.NoError(t, err)
	assert.Equal(t, CategoryNoise, cat)
}

func TestHeuristicPredictReference(t *testing.T) {
	h := NewHeuristic()
	f := out.Features{Role: "CC", Subject: "Meeting minutes and notes", AttachmentKinds: []string{"PDF"}}
	cat, _, err := h.Predict(f)
	assert.NoError(t, err)
	assert.Equal(t, CategoryReference, cat)
}

func TestHeuristicPredictFocusFallback(t *testing.T) {
	h := NewHeuristic()
	f := out.Features{Role: "Direct", Subject: "Quick question", Body: "Can we sync tomorrow?"}
	cat, conf, err := h.Predict(f)
	assert.NoError(t, err)
	assert.Equal(t, CategoryFocus, cat)
	assert.Greater(t, conf, 0.0)
}

func TestHeuristicConfidenceBounds(t *testing.T) {
	h := NewHeuristic()
	f := out.Features{Role: "Direct", Subject: "urgent urgent urgent urgent urgent critical emergency outage incident down ASAP action required"}
	_, conf, err := h.Predict(f)
	assert.NoError(t, err)
	assert.LessOrEqual(t, conf, 0.99)
}
