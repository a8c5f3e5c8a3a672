package engine

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-pkgz/pool"

	"mailsieve/core/domain"
	in "mailsieve/core/port/in"
	out "mailsieve/core/port/out"
	"mailsieve/pkg/apperr"
)

// extractWorkers bounds feature-extraction/classification concurrency
// within a single Ingest pass — CPU-bound, independent per
// message, internal to one step of an otherwise logically single-threaded
// job (spec §5).
const extractWorkers = 4

// classifyResult is one message's extraction+prediction outcome, carrying
// its original (newest-first) position so the sequential commit phase can
// replay results in order regardless of completion order.
type classifyResult struct {
	index      int
	msg        out.RawMessage
	features   out.Features
	category   domain.Category
	confidence float64
	err        error
}

// Ingest implements the Ingest Job (spec §4.E): scan, classify, label,
// journal, up to limit messages.
func (e *Engine) Ingest(ctx context.Context, limit int) (in.RunResult, error) {
	if !e.permit.TryAcquire("ingest") {
		return in.RunResult{Status: in.RunSkipped}, nil
	}
	defer e.permit.Release()

	known := e.classifier.Categories()

	messages, err := e.gateway.ListUnclassified(ctx, known, limit)
	if err != nil {
		if out.IsFatalGatewayErr(err) {
			return in.RunResult{}, apperr.FatalGateway("ingest.list_unclassified", err)
		}
		e.log.Warn().Err(err).Msg("ingest: list_unclassified failed, aborting pass")
		return in.RunResult{Status: in.RunSuccess}, nil
	}

	results := e.extractAndClassify(ctx, messages)

	var details []string
	processed := 0
	for _, r := range results {
		if r.err != nil {
			e.log.Warn().Err(r.err).Str("id", r.msg.ID).Msg("ingest: per-message failure, skipping")
			details = append(details, r.msg.ID+": "+r.err.Error())
			continue
		}

		if err := e.gateway.AddLabel(ctx, r.msg.ID, r.category); err != nil {
			e.log.Warn().Err(err).Str("id", r.msg.ID).Msg("ingest: add_label failed, skipping journal write")
			details = append(details, r.msg.ID+": add_label failed: "+err.Error())
			continue
		}

		rec := e.buildRecord(r)
		if err := e.journal.Upsert(ctx, rec); err != nil {
			// Label already applied server-side; the next pass will treat
			// this id as classified and skip it. The next recheck cycle
			// repopulates the journal entry via correction reconciliation.
			e.log.Error().Err(err).Str("id", r.msg.ID).Msg("ingest: journal upsert failed after label applied")
			details = append(details, r.msg.ID+": journal upsert failed: "+err.Error())
			continue
		}
		processed++
	}

	return in.RunResult{Status: in.RunSuccess, ProcessedCount: processed, Details: details}, nil
}

// extractAndClassify runs feature extraction and prediction concurrently
// for a batch, then returns results ordered exactly as the input (the
// gateway's newest-first order), the result-collection barrier spec §5's
// expansion describes.
func (e *Engine) extractAndClassify(ctx context.Context, messages []out.RawMessage) []classifyResult {
	results := make([]classifyResult, len(messages))

	worker := pool.WorkerFunc[int](func(ctx context.Context, index int) error {
		msg := messages[index]
		features, err := e.extractor.Extract(msg.Raw)
		if err != nil {
			results[index] = classifyResult{index: index, msg: msg, err: apperr.FeatureExtraction(err)}
			return nil
		}

		category, confidence, err := e.classifyFeatures(features)
		if err != nil {
			results[index] = classifyResult{index: index, msg: msg, err: apperr.Classifier(err)}
			return nil
		}

		results[index] = classifyResult{
			index: index, msg: msg, features: features,
			category: category, confidence: confidence,
		}
		return nil
	})

	p := pool.New[int](extractWorkers, worker)
	if err := p.Go(ctx); err != nil {
		e.log.Error().Err(err).Msg("extract/classify pool start failed")
		return results
	}
	for i := range messages {
		p.Submit(i)
	}
	_ = p.Close(ctx)

	return results
}

func (e *Engine) classifyFeatures(features out.Features) (domain.Category, float64, error) {
	return e.classifier.Predict(features)
}

func (e *Engine) buildRecord(r classifyResult) *domain.MessageRecord {
	receivedAt := e.parseReceivedAt(r.msg.ReceivedAt)
	return &domain.MessageRecord{
		ID:                r.msg.ID,
		ReceivedAt:        receivedAt,
		Sender:            r.features.From,
		Recipient:         r.features.To,
		Cc:                r.features.Cc,
		Subject:           r.features.Subject,
		Body:              r.features.Body,
		MassMail:          r.features.MassMail,
		AttachmentKinds:   r.features.AttachmentKinds,
		PredictedCategory: r.category,
		Confidence:        r.confidence,
	}
}

// parseReceivedAt best-effort parses an RFC 2822 Date header, falling back
// to ingest time (spec §3: "best-effort parsed; falls back to ingest time").
func (e *Engine) parseReceivedAt(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}
	t, err := mail.ParseDate(raw)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
