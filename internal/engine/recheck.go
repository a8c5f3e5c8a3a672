package engine

import (
	"context"
	"time"

	"mailsieve/core/domain"
	in "mailsieve/core/port/in"
)

// recheckLimit bounds how many candidates one Recheck pass reconciles.
const recheckLimit = 200

// reconcileOutcome is the classified divergence between what the server
// shows and what the journal holds, per the state table in spec §4.F.
type reconcileOutcome int

const (
	outcomeNoOp reconcileOutcome = iota
	outcomeCorrection
	outcomeVerification
	outcomeCorrectionAndVerification
	outcomeAmbiguous
	outcomeLabelsRemoved
)

// Recheck implements the Recheck Job (spec §4.F): select age-banded
// candidates, reconcile each against its current server-side label set.
func (e *Engine) Recheck(ctx context.Context) (in.RunResult, error) {
	if !e.permit.TryAcquire("recheck") {
		return in.RunResult{Status: in.RunSkipped}, nil
	}
	defer e.permit.Release()

	known := e.classifier.Categories()
	now := time.Now().UTC()

	candidates, err := e.journal.SelectRecheckCandidates(ctx, now, recheckLimit)
	if err != nil {
		e.log.Error().Err(err).Msg("recheck: select candidates failed")
		return in.RunResult{}, nil
	}
	if len(candidates) == 0 {
		return in.RunResult{Status: in.RunSuccess}, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	labelSets, err := e.gateway.LabelsOf(ctx, ids)
	if err != nil {
		e.log.Warn().Err(err).Msg("recheck: labels_of failed, aborting pass")
		return in.RunResult{Status: in.RunSuccess}, nil
	}

	var details []string
	processed := 0
	for _, rec := range candidates {
		present, exists := labelSets[rec.ID]
		if !exists {
			// Spec §4.F step 1: the message itself is gone from the
			// mailbox (distinct from "present but zero trained labels",
			// which flows through reconcileOne's |trained|=0 case).
			// Touch last_recheck_at only.
			if err := e.journal.SetRecheck(ctx, rec.ID, nil); err != nil {
				e.log.Error().Err(err).Str("id", rec.ID).Msg("recheck: touch last_recheck_at failed")
			}
			continue
		}

		if err := e.reconcileOne(ctx, rec, present, known); err != nil {
			e.log.Warn().Err(err).Str("id", rec.ID).Msg("recheck: reconciliation failed, skipping")
			details = append(details, rec.ID+": "+err.Error())
			continue
		}
		processed++
	}

	return in.RunResult{Status: in.RunSuccess, ProcessedCount: processed, Details: details}, nil
}

// reconcileOne runs the per-candidate state machine in spec §4.F.
func (e *Engine) reconcileOne(ctx context.Context, rec *domain.MessageRecord, present []string, known domain.CategorySet) error {
	local := rec.TrueCategory()

	trained := intersectKnown(present, known)
	verified := containsLabel(present, e.verificationLabel)
	localInTrained := containsCategory(trained, local)

	outcome, target, cleanup := classify4F(trained, verified, local, localInTrained)

	switch outcome {
	case outcomeNoOp:
		return e.journal.SetRecheck(ctx, rec.ID, nil)

	case outcomeCorrection:
		if err := e.applyCorrection(ctx, rec, target); err != nil {
			return err
		}
		if cleanup {
			if err := e.gateway.RemoveLabel(ctx, rec.ID, local); err != nil {
				e.log.Warn().Err(err).Str("id", rec.ID).Msg("recheck: cleanup remove_label failed")
			}
		}
		return e.journal.SetRecheck(ctx, rec.ID, nil)

	case outcomeVerification:
		if err := e.applyCorrection(ctx, rec, target); err != nil {
			return err
		}
		if err := e.gateway.RemoveLabel(ctx, rec.ID, e.verificationLabel); err != nil {
			e.log.Warn().Err(err).Str("id", rec.ID).Msg("recheck: remove verification label failed")
		}
		return e.journal.SetRecheck(ctx, rec.ID, nil)

	case outcomeCorrectionAndVerification:
		if err := e.applyCorrection(ctx, rec, target); err != nil {
			return err
		}
		if cleanup {
			if err := e.gateway.RemoveLabel(ctx, rec.ID, local); err != nil {
				e.log.Warn().Err(err).Str("id", rec.ID).Msg("recheck: cleanup remove_label failed")
			}
		}
		if err := e.gateway.RemoveLabel(ctx, rec.ID, e.verificationLabel); err != nil {
			e.log.Warn().Err(err).Str("id", rec.ID).Msg("recheck: remove verification label failed")
		}
		return e.journal.SetRecheck(ctx, rec.ID, nil)

	case outcomeAmbiguous:
		return e.journal.SetRecheck(ctx, rec.ID, trained)

	default: // outcomeLabelsRemoved
		return e.journal.SetRecheck(ctx, rec.ID, nil)
	}
}

// applyCorrection writes the correction and emits exactly one training
// line — spec §4.F's invariant that emission happens at most once per
// reconciliation pass per message even when both correction and
// verification apply.
func (e *Engine) applyCorrection(ctx context.Context, rec *domain.MessageRecord, target domain.Category) error {
	if err := e.journal.SetCorrection(ctx, rec.ID, target); err != nil {
		return err
	}
	e.training.Emit(target, domain.TrainingLine{
		Subject:         rec.Subject,
		Body:            rec.Body,
		From:            rec.Sender,
		To:              rec.Recipient,
		Cc:              rec.Cc,
		MassMail:        rec.MassMail,
		AttachmentTypes: rec.AttachmentKinds,
	})
	return nil
}

// classify4F maps the reconciliation state table (spec §4.F) onto an
// outcome, a correction target (meaningful only for correction/verification
// outcomes), and whether local's server-side label needs cleanup.
func classify4F(trained []domain.Category, verified bool, local domain.Category, localInTrained bool) (reconcileOutcome, domain.Category, bool) {
	switch len(trained) {
	case 0:
		return outcomeLabelsRemoved, "", false

	case 1:
		x := trained[0]
		if !verified {
			if x == local {
				return outcomeNoOp, "", false
			}
			return outcomeCorrection, x, false // old label already gone; no cleanup
		}
		if x == local {
			return outcomeVerification, x, false
		}
		return outcomeCorrectionAndVerification, x, false

	default: // >= 2
		if !verified {
			if localInTrained && len(trained) == 2 {
				other := otherThan(trained, local)
				return outcomeCorrection, other, true
			}
			return outcomeAmbiguous, "", false
		}
		if localInTrained && len(trained) == 2 {
			other := otherThan(trained, local)
			return outcomeCorrectionAndVerification, other, true
		}
		return outcomeAmbiguous, "", false
	}
}

func intersectKnown(present []string, known domain.CategorySet) []domain.Category {
	var out []domain.Category
	for _, label := range present {
		cat := domain.Category(label)
		if known.Contains(cat) {
			out = append(out, cat)
		}
	}
	return out
}

func containsLabel(present []string, label domain.Category) bool {
	for _, l := range present {
		if domain.Category(l) == label {
			return true
		}
	}
	return false
}

func containsCategory(set []domain.Category, target domain.Category) bool {
	for _, c := range set {
		if c == target {
			return true
		}
	}
	return false
}

func otherThan(set []domain.Category, exclude domain.Category) domain.Category {
	for _, c := range set {
		if c != exclude {
			return c
		}
	}
	return ""
}
