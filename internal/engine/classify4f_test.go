package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mailsieve/core/domain"
)

// TestClassify4F exercises every row of the reconciliation state table in
// spec §4.F directly, independent of any collaborator.
func TestClassify4F(t *testing.T) {
	cat := func(ss ...string) []domain.Category {
		out := make([]domain.Category, len(ss))
		for i, s := range ss {
			out[i] = domain.Category(s)
		}
		return out
	}

	tests := []struct {
		name           string
		trained        []domain.Category
		verified       bool
		local          domain.Category
		localInTrained bool
		wantOutcome    reconcileOutcome
		wantTarget     domain.Category
		wantCleanup    bool
	}{
		{
			name:        "zero trained labels -> labels removed, no-op besides touch",
			trained:     cat(),
			verified:    false,
			local:       "NOISE",
			wantOutcome: outcomeLabelsRemoved,
		},
		{
			name:        "single trained label equal to local -> no-op",
			trained:     cat("FOCUS"),
			verified:    false,
			local:       "FOCUS",
			wantOutcome: outcomeNoOp,
		},
		{
			name:        "single trained label differs from local, unverified -> correction no cleanup (S2)",
			trained:     cat("FOCUS"),
			verified:    false,
			local:       "NOISE",
			wantOutcome: outcomeCorrection,
			wantTarget:  "FOCUS",
			wantCleanup: false,
		},
		{
			name:        "single trained label equal to local, verified -> pure verification (S4)",
			trained:     cat("FOCUS"),
			verified:    true,
			local:       "FOCUS",
			wantOutcome: outcomeVerification,
			wantTarget:  "FOCUS",
		},
		{
			name:        "single trained label differs, verified -> correction + verification",
			trained:     cat("FOCUS"),
			verified:    true,
			local:       "NOISE",
			wantOutcome: outcomeCorrectionAndVerification,
			wantTarget:  "FOCUS",
		},
		{
			name:           "two trained labels incl. local, unverified -> correction with cleanup (S3)",
			trained:        cat("NOISE", "FOCUS"),
			verified:       false,
			local:          "NOISE",
			localInTrained: true,
			wantOutcome:    outcomeCorrection,
			wantTarget:     "FOCUS",
			wantCleanup:    true,
		},
		{
			name:           "three trained labels, local absent -> ambiguous (S5)",
			trained:        cat("FOCUS", "URGENT", "REFERENCE"),
			verified:       false,
			local:          "NOISE",
			localInTrained: false,
			wantOutcome:    outcomeAmbiguous,
		},
		{
			name:           "two trained labels, local absent, unverified -> ambiguous",
			trained:        cat("FOCUS", "URGENT"),
			verified:       false,
			local:          "NOISE",
			localInTrained: false,
			wantOutcome:    outcomeAmbiguous,
		},
		{
			name:           "two trained labels incl. local, verified -> verified correction + cleanup",
			trained:        cat("NOISE", "FOCUS"),
			verified:       true,
			local:          "NOISE",
			localInTrained: true,
			wantOutcome:    outcomeCorrectionAndVerification,
			wantTarget:     "FOCUS",
			wantCleanup:    true,
		},
		{
			name:           "three trained labels, verified, other cases -> ambiguous",
			trained:        cat("FOCUS", "URGENT", "REFERENCE"),
			verified:       true,
			local:          "NOISE",
			localInTrained: false,
			wantOutcome:    outcomeAmbiguous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, target, cleanup := classify4F(tt.trained, tt.verified, tt.local, tt.localInTrained)
			assert.Equal(t, tt.wantOutcome, outcome)
			if tt.wantOutcome == outcomeCorrection || tt.wantOutcome == outcomeVerification || tt.wantOutcome == outcomeCorrectionAndVerification {
				assert.Equal(t, tt.wantTarget, target)
			}
			assert.Equal(t, tt.wantCleanup, cleanup)
		})
	}
}

func TestIntersectKnown(t *testing.T) {
	known := domain.NewCategorySet([]domain.Category{"FOCUS", "URGENT"})
	got := intersectKnown([]string{"FOCUS", "SOMETHING_ELSE", "URGENT"}, known)
	assert.ElementsMatch(t, []domain.Category{"FOCUS", "URGENT"}, got)
}

func TestContainsLabelAndCategory(t *testing.T) {
	assert.True(t, containsLabel([]string{"A", "B"}, "B"))
	assert.False(t, containsLabel([]string{"A", "B"}, "C"))

	set := []domain.Category{"X", "Y"}
	assert.True(t, containsCategory(set, "Y"))
	assert.False(t, containsCategory(set, "Z"))
}

func TestOtherThan(t *testing.T) {
	set := []domain.Category{"A", "B"}
	assert.Equal(t, domain.Category("B"), otherThan(set, "A"))
	assert.Equal(t, domain.Category("A"), otherThan(set, "B"))
}
