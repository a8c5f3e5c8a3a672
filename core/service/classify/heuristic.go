package classify

import (
	"strings"

	"mailsieve/core/domain"
	out "mailsieve/core/port/out"
)

// Default categories the bundled heuristic classifier recognizes when no
// external model is configured (spec §4.C: "a fixed model snapshot").
const (
	CategoryUrgent    domain.Category = "URGENT"
	CategoryFocus     domain.Category = "FOCUS"
	CategoryReference domain.Category = "REFERENCE"
	CategoryNoise     domain.Category = "NOISE"
)

// rule scores a feature set; the highest-scoring rule with a positive score
// wins. Ties break in the order of h.rules (Urgent > Noise > Reference > Focus).
type rule struct {
	category domain.Category
	score    func(out.Features) int
}

// Heuristic is the bundled default Classifier (spec §4.C): a deterministic,
// keyword- and structure-scored stand-in for the externally trained model,
// grounded on the same confidence-scored pattern-matching idiom the
// teacher's label-inference code used. It exists so the engine runs
// end-to-end without a trained model present; production deployments wire
// an external Classifier (e.g. an HTTP client to the SetFit inference
// service) that satisfies the same port.
type Heuristic struct {
	rules      []rule
	categories domain.CategorySet
}

var urgentKeywords = []string{"urgent", "asap", "down", "outage", "incident", "critical", "emergency", "action required"}
var noiseKeywords = []string{"unsubscribe", "newsletter", "promo", "sale", "% off", "webinar"}
var referenceKeywords = []string{"minutes", "notes", "fyi", "recap", "summary", "archive"}

// NewHeuristic builds the bundled classifier over the fixed four-category
// set above.
func NewHeuristic() *Heuristic {
	h := &Heuristic{
		categories: domain.NewCategorySet([]domain.Category{
			CategoryUrgent, CategoryFocus, CategoryReference, CategoryNoise,
		}),
	}
	h.rules = []rule{
		{category: CategoryUrgent, score: h.scoreUrgent},
		{category: CategoryNoise, score: h.scoreNoise},
		{category: CategoryReference, score: h.scoreReference},
		{category: CategoryFocus, score: h.scoreFocus},
	}
	return h
}

func (h *Heuristic) scoreUrgent(f out.Features) int {
	score := 0
	text := strings.ToLower(f.Subject + " " + f.Body)
	for _, kw := range urgentKeywords {
		if strings.Contains(text, kw) {
			score += 2
		}
	}
	if f.Role == "Direct" {
		score++
	}
	return score
}

func (h *Heuristic) scoreNoise(f out.Features) int {
	score := 0
	text := strings.ToLower(f.Subject + " " + f.Body)
	for _, kw := range noiseKeywords {
		if strings.Contains(text, kw) {
			score += 2
		}
	}
	if f.MassMail {
		score += 3
	}
	if f.Role == "Hidden" {
		score++
	}
	return score
}

func (h *Heuristic) scoreReference(f out.Features) int {
	score := 0
	text := strings.ToLower(f.Subject + " " + f.Body)
	for _, kw := range referenceKeywords {
		if strings.Contains(text, kw) {
			score += 2
		}
	}
	if len(f.AttachmentKinds) > 0 {
		score++
	}
	return score
}

func (h *Heuristic) scoreFocus(f out.Features) int {
	score := 1 // baseline: a direct, non-mass, keyword-free mail defaults here
	if f.Role == "Direct" {
		score += 2
	}
	if f.MassMail {
		score -= 3
	}
	return score
}

// Predict implements out.Classifier.
func (h *Heuristic) Predict(f out.Features) (domain.Category, float64, error) {
	best := h.rules[0]
	bestScore := best.score(f)
	for _, r := range h.rules[1:] {
		s := r.score(f)
		if s > bestScore {
			best, bestScore = r, s
		}
	}

	if bestScore <= 0 {
		return CategoryFocus, 0.5, nil
	}

	confidence := float64(bestScore) / float64(bestScore+2)
	if confidence > 0.99 {
		confidence = 0.99
	}
	return best.category, confidence, nil
}

// Categories implements out.Classifier.
func (h *Heuristic) Categories() domain.CategorySet {
	return h.categories
}
