package out

import "mailsieve/core/domain"

// Features is the Feature Extractor's output: the structured view of a raw
// message the Classifier predicts against (spec §4.D).
type Features struct {
	Role            string // "Direct", "CC", or "Hidden"
	MassMail        bool
	AttachmentKinds []string
	From            string
	To              string
	Cc              string
	Subject         string
	Body            string
}

// Classifier is the external pure-function collaborator (spec §4.C). A
// fixed model snapshot predicts deterministically; the core never updates
// the model.
type Classifier interface {
	// Predict returns a category and a confidence in [0,1].
	Predict(features Features) (domain.Category, float64, error)

	// Categories returns the classifier's current enumerated category set.
	// The core snapshots this once per job (spec §9) so a model swap
	// mid-job is never observed until the next job.
	Categories() domain.CategorySet
}
