package engine

import (
	"context"

	in "mailsieve/core/port/in"
)

// Reclassify implements Bulk Reclassify (spec §4.I): a one-shot Ingest
// variant over every uncorrected journal row — re-fetch, re-extract,
// re-predict, and apply only if the category changed.
func (e *Engine) Reclassify(ctx context.Context, limit int) (in.RunResult, error) {
	if !e.permit.TryAcquire("reclassify") {
		return in.RunResult{Status: in.RunSkipped}, nil
	}
	defer e.permit.Release()

	rows, err := e.journal.SelectUncorrected(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("reclassify: select uncorrected failed")
		return in.RunResult{}, nil
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	var details []string
	processed := 0
	for _, rec := range rows {
		msg, err := e.gateway.Fetch(ctx, rec.ID)
		if err != nil {
			e.log.Warn().Err(err).Str("id", rec.ID).Msg("reclassify: fetch failed, skipping")
			details = append(details, rec.ID+": fetch failed: "+err.Error())
			continue
		}
		if msg == nil {
			continue // message no longer exists; deletions are a no-op
		}

		features, err := e.extractor.Extract(msg.Raw)
		if err != nil {
			details = append(details, rec.ID+": extract failed: "+err.Error())
			continue
		}

		category, confidence, err := e.classifier.Predict(features)
		if err != nil {
			details = append(details, rec.ID+": predict failed: "+err.Error())
			continue
		}

		if category == rec.PredictedCategory {
			continue // unchanged, nothing to do
		}

		if err := e.gateway.RemoveLabel(ctx, rec.ID, rec.PredictedCategory); err != nil {
			e.log.Warn().Err(err).Str("id", rec.ID).Msg("reclassify: remove old label failed")
		}
		if err := e.gateway.AddLabel(ctx, rec.ID, category); err != nil {
			details = append(details, rec.ID+": add_label failed: "+err.Error())
			continue
		}

		rec.PredictedCategory = category
		rec.Confidence = confidence
		rec.Sender = features.From
		rec.Recipient = features.To
		rec.Cc = features.Cc
		rec.Subject = features.Subject
		rec.Body = features.Body
		rec.MassMail = features.MassMail
		rec.AttachmentKinds = features.AttachmentKinds

		if err := e.journal.Upsert(ctx, rec); err != nil {
			e.log.Error().Err(err).Str("id", rec.ID).Msg("reclassify: upsert failed after relabel")
			details = append(details, rec.ID+": upsert failed: "+err.Error())
			continue
		}
		processed++
	}

	return in.RunResult{Status: in.RunSuccess, ProcessedCount: processed, Details: details}, nil
}
