package engine

import (
	"context"
	"sync"
	"time"

	"mailsieve/core/domain"
	out "mailsieve/core/port/out"
)

// fakeJournal is an in-memory out.Journal double recording every call a
// test cares about, grounded on the same in-memory fake idiom the mail
// gateway's own fakeMailbox uses.
type fakeJournal struct {
	mu sync.Mutex

	records map[string]*domain.MessageRecord

	upserts      []string
	corrections  []string
	rechecks     []string
	selectErr    error
	recheckCands []*domain.MessageRecord
	uncorrected  []*domain.MessageRecord
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{records: make(map[string]*domain.MessageRecord)}
}

func (j *fakeJournal) put(rec *domain.MessageRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records[rec.ID] = rec
}

func (j *fakeJournal) Upsert(_ context.Context, rec *domain.MessageRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.upserts = append(j.upserts, rec.ID)

	existing, ok := j.records[rec.ID]
	if !ok {
		cp := *rec
		j.records[rec.ID] = &cp
		return nil
	}
	// Upsert preservation invariant: correction/recheck/ambiguity/read-state
	// columns survive re-ingest (spec §3 invariant 1).
	existing.ReceivedAt = rec.ReceivedAt
	existing.Sender = rec.Sender
	existing.Recipient = rec.Recipient
	existing.Cc = rec.Cc
	existing.Subject = rec.Subject
	existing.Body = rec.Body
	existing.MassMail = rec.MassMail
	existing.AttachmentKinds = rec.AttachmentKinds
	existing.PredictedCategory = rec.PredictedCategory
	existing.Confidence = rec.Confidence
	return nil
}

func (j *fakeJournal) GetByID(_ context.Context, id string) (*domain.MessageRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (j *fakeJournal) SetCorrection(_ context.Context, id string, category domain.Category) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.corrections = append(j.corrections, id+"="+string(category))
	if rec, ok := j.records[id]; ok {
		cat := category
		rec.CorrectedCategory = &cat
	}
	return nil
}

func (j *fakeJournal) SetRecheck(_ context.Context, id string, ambiguous []domain.Category) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rechecks = append(j.rechecks, id)
	now := time.Now().UTC()
	if rec, ok := j.records[id]; ok {
		rec.LastRecheckAt = &now
		rec.AmbiguousCandidates = ambiguous
	}
	return nil
}

func (j *fakeJournal) SelectRecheckCandidates(_ context.Context, _ time.Time, limit int) ([]*domain.MessageRecord, error) {
	if j.selectErr != nil {
		return nil, j.selectErr
	}
	if limit > 0 && len(j.recheckCands) > limit {
		return j.recheckCands[:limit], nil
	}
	return j.recheckCands, nil
}

func (j *fakeJournal) SelectUncorrected(_ context.Context) ([]*domain.MessageRecord, error) {
	return j.uncorrected, nil
}

func (j *fakeJournal) Stats(_ context.Context, _, _ *time.Time) (map[domain.Category]int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	result := make(map[domain.Category]int)
	for _, rec := range j.records {
		result[rec.PredictedCategory]++
	}
	return result, nil
}

func (j *fakeJournal) Unread(_ context.Context) ([]*domain.MessageRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*domain.MessageRecord
	for _, rec := range j.records {
		if !rec.IsRead {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (j *fakeJournal) Ack(_ context.Context, ids []string, all bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if all {
		for _, rec := range j.records {
			rec.IsRead = true
		}
		return nil
	}
	for _, id := range ids {
		if rec, ok := j.records[id]; ok {
			rec.IsRead = true
		}
	}
	return nil
}

func (j *fakeJournal) PopUnread(ctx context.Context) ([]*domain.MessageRecord, error) {
	unread, _ := j.Unread(ctx)
	if len(unread) == 0 {
		return nil, nil
	}
	ids := make([]string, len(unread))
	for i, rec := range unread {
		ids[i] = rec.ID
	}
	_ = j.Ack(ctx, ids, false)
	return unread, nil
}

func (j *fakeJournal) ReadInRange(_ context.Context, _, _ time.Time) ([]*domain.MessageRecord, error) {
	return nil, nil
}

func (j *fakeJournal) ListAmbiguous(_ context.Context) ([]*domain.MessageRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*domain.MessageRecord
	for _, rec := range j.records {
		if rec.IsAmbiguous() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (j *fakeJournal) ListUncorrected(ctx context.Context) ([]*domain.MessageRecord, error) {
	return j.SelectUncorrected(ctx)
}

var _ out.Journal = (*fakeJournal)(nil)

// fakeGateway is an in-memory out.MailGateway double: label sets per id,
// recorded Add/Remove calls.
type fakeGateway struct {
	mu sync.Mutex

	labels  map[string]map[string]struct{}
	added   []string // "id=category"
	removed []string // "id=category"

	unclassified []out.RawMessage
	fetchByID    map[string]*out.RawMessage
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		labels:    make(map[string]map[string]struct{}),
		fetchByID: make(map[string]*out.RawMessage),
	}
}

func (g *fakeGateway) setLabels(id string, labels ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	g.labels[id] = set
}

func (g *fakeGateway) ListUnclassified(_ context.Context, _ domain.CategorySet, limit int) ([]out.RawMessage, error) {
	if limit > 0 && len(g.unclassified) > limit {
		return g.unclassified[:limit], nil
	}
	return g.unclassified, nil
}

func (g *fakeGateway) Fetch(_ context.Context, id string) (*out.RawMessage, error) {
	return g.fetchByID[id], nil
}

func (g *fakeGateway) LabelsOf(_ context.Context, ids []string) (map[string][]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	result := make(map[string][]string, len(ids))
	for _, id := range ids {
		set, ok := g.labels[id]
		if !ok {
			continue // message absent from the server entirely
		}
		labels := make([]string, 0, len(set))
		for l := range set {
			labels = append(labels, l)
		}
		result[id] = labels
	}
	return result, nil
}

func (g *fakeGateway) AddLabel(_ context.Context, id string, category domain.Category) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.labels[id] == nil {
		g.labels[id] = make(map[string]struct{})
	}
	g.labels[id][string(category)] = struct{}{}
	g.added = append(g.added, id+"="+string(category))
	return nil
}

func (g *fakeGateway) RemoveLabel(_ context.Context, id string, category domain.Category) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.labels[id], string(category))
	g.removed = append(g.removed, id+"="+string(category))
	return nil
}

var _ out.MailGateway = (*fakeGateway)(nil)

// fakeClassifier is an out.Classifier double: a fixed subject->category
// map; an unmapped subject gets an arbitrary member of the known set.
type fakeClassifier struct {
	known      domain.CategorySet
	predictFor map[string]domain.Category
	confidence float64
}

func newFakeClassifier(categories ...domain.Category) *fakeClassifier {
	return &fakeClassifier{
		known:      domain.NewCategorySet(categories),
		predictFor: make(map[string]domain.Category),
		confidence: 0.9,
	}
}

func (c *fakeClassifier) Predict(f out.Features) (domain.Category, float64, error) {
	if cat, ok := c.predictFor[f.Subject]; ok {
		return cat, c.confidence, nil
	}
	for cat := range c.known {
		return cat, c.confidence, nil
	}
	return "", 0, nil
}

func (c *fakeClassifier) Categories() domain.CategorySet { return c.known }

var _ out.Classifier = (*fakeClassifier)(nil)

// fakeExtractor is a lookup Extractor: Features come pre-baked per raw
// payload via a map keyed by the raw bytes themselves.
type fakeExtractor struct {
	byRaw map[string]out.Features
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{byRaw: make(map[string]out.Features)}
}

func (x *fakeExtractor) Extract(raw []byte) (out.Features, error) {
	return x.byRaw[string(raw)], nil
}

var _ Extractor = (*fakeExtractor)(nil)
