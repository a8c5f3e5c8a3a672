// Package engine implements the core/port/in.Engine control surface: the
// Job Controller, Ingest Job, Recheck Job, Bulk Reclassify, and Training-
// Data Emitter wired together as a single "engine value" (grounded on the
// teacher's dependency-injected service-struct idiom, generalized so every
// collaborator is an explicit field rather than a package-level global).
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mailsieve/core/domain"
	in "mailsieve/core/port/in"
	out "mailsieve/core/port/out"
	"mailsieve/pkg/apperr"
)

// Extractor is the narrow capability the engine needs from the Feature
// Extractor component (spec §4.D).
type Extractor interface {
	Extract(raw []byte) (out.Features, error)
}

// Engine is the single wiring point for every core collaborator. It is
// constructed once at startup (see internal/bootstrap) and satisfies
// core/port/in.Engine.
type Engine struct {
	journal    out.Journal
	gateway    out.MailGateway
	classifier out.Classifier
	extractor  Extractor
	permit     Permit
	training   *TrainingEmitter

	verificationLabel domain.Category
	log               zerolog.Logger
}

// Deps bundles Engine's constructor arguments.
type Deps struct {
	Journal           out.Journal
	Gateway           out.MailGateway
	Classifier        out.Classifier
	Extractor         Extractor
	Permit            Permit
	Training          *TrainingEmitter
	VerificationLabel string
	Log               zerolog.Logger
}

// New builds the engine value.
func New(d Deps) *Engine {
	return &Engine{
		journal:           d.Journal,
		gateway:           d.Gateway,
		classifier:        d.Classifier,
		extractor:         d.Extractor,
		permit:            d.Permit,
		training:          d.Training,
		verificationLabel: domain.Category(d.VerificationLabel),
		log:               d.Log.With().Str("component", "engine").Logger(),
	}
}

// Run implements in.Engine.
func (e *Engine) Run(ctx context.Context, limit int) (in.RunResult, error) {
	return e.Ingest(ctx, limit)
}

// Stats implements in.Engine.
func (e *Engine) Stats(ctx context.Context, from, to *time.Time) (map[domain.Category]int, error) {
	return e.journal.Stats(ctx, from, to)
}

// Notifications implements in.Engine.
func (e *Engine) Notifications(ctx context.Context) ([]*domain.MessageRecord, error) {
	return e.journal.Unread(ctx)
}

// Ack implements in.Engine.
func (e *Engine) Ack(ctx context.Context, ids []string, all bool) error {
	return e.journal.Ack(ctx, ids, all)
}

// Pop implements in.Engine.
func (e *Engine) Pop(ctx context.Context) ([]*domain.MessageRecord, error) {
	return e.journal.PopUnread(ctx)
}

// Read implements in.Engine.
func (e *Engine) Read(ctx context.Context, from, to time.Time) ([]*domain.MessageRecord, error) {
	return e.journal.ReadInRange(ctx, from, to)
}

// Labels implements in.Engine.
func (e *Engine) Labels(ctx context.Context) []domain.Category {
	return e.classifier.Categories().Slice()
}

// Correct implements in.Engine: an operator-driven correction takes the
// same SetCorrection + training-emission pathway reconciliation uses.
func (e *Engine) Correct(ctx context.Context, id string, category domain.Category) error {
	rec, err := e.journal.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperr.NotFound("message")
	}
	if !e.classifier.Categories().Contains(category) {
		return apperr.BadRequest("category is not in the current category set")
	}

	if err := e.journal.SetCorrection(ctx, id, category); err != nil {
		return err
	}
	e.training.Emit(category, domain.TrainingLine{
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

// Ambiguous implements in.Engine.
func (e *Engine) Ambiguous(ctx context.Context) ([]*domain.MessageRecord, error) {
	return e.journal.ListAmbiguous(ctx)
}

var _ in.Engine = (*Engine)(nil)
