package mailgateway

import (
	"context"
	"fmt"
	"sort"
	"sync"

	out "mailsieve/core/port/out"
)

// fakeMailbox is an in-memory Conn, grounded on the same in-memory fake
// idiom the teacher used for its repository test doubles. It backs
// NewFakeDialer for demo/standalone operation when no real mailbox is
// configured.
type fakeMailbox struct {
	mu       sync.Mutex
	messages map[string]out.RawMessage
	labels   map[string]map[string]struct{}
	order    []string // insertion order, newest last
}

// NewFakeDialer returns a Dialer backed by a single shared in-memory
// mailbox — every dial reuses the same state, the way a real pooled IMAP
// connection would observe the same server-side state across calls.
func NewFakeDialer() Dialer {
	box := &fakeMailbox{
		messages: make(map[string]out.RawMessage),
		labels:   make(map[string]map[string]struct{}),
	}
	return func(_ context.Context) (Conn, error) {
		return box, nil
	}
}

// Seed inserts a message with no labels, for test setup.
func (f *fakeMailbox) Seed(msg out.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.messages[msg.ID]; !exists {
		f.order = append(f.order, msg.ID)
	}
	f.messages[msg.ID] = msg
	if f.labels[msg.ID] == nil {
		f.labels[msg.ID] = make(map[string]struct{})
	}
}

func (f *fakeMailbox) ListUnclassified(_ context.Context, known []string, limit int) ([]out.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	knownSet := make(map[string]struct{}, len(known))
	for _, k := range known {
		knownSet[k] = struct{}{}
	}

	var result []out.RawMessage
	for i := len(f.order) - 1; i >= 0 && len(result) < limit; i-- {
		id := f.order[i]
		hasKnown := false
		for label := range f.labels[id] {
			if _, ok := knownSet[label]; ok {
				hasKnown = true
				break
			}
		}
		if !hasKnown {
			result = append(result, f.messages[id])
		}
	}
	return result, nil
}

func (f *fakeMailbox) Fetch(_ context.Context, id string) (*out.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, nil
	}
	return &msg, nil
}

func (f *fakeMailbox) LabelsOf(_ context.Context, ids []string) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[string][]string, len(ids))
	for _, id := range ids {
		labelSet := f.labels[id]
		labels := make([]string, 0, len(labelSet))
		for l := range labelSet {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		result[id] = labels
	}
	return result, nil
}

func (f *fakeMailbox) AddLabel(_ context.Context, id, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[id]; !ok {
		return fmt.Errorf("no such message: %s", id)
	}
	if f.labels[id] == nil {
		f.labels[id] = make(map[string]struct{})
	}
	f.labels[id][label] = struct{}{}
	return nil
}

func (f *fakeMailbox) RemoveLabel(_ context.Context, id, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.labels[id], label)
	return nil
}

func (f *fakeMailbox) Close() error { return nil }
