package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"mailsieve/core/domain"
)

// TrainingEmitter appends accepted corrections/verifications to a
// per-category JSONL file (spec §4.H). The journal remains authoritative;
// a failed append is logged, never rolled back against the journal write
// that triggered it.
type TrainingEmitter struct {
	dir string
	log zerolog.Logger

	mu    sync.Mutex
	files map[domain.Category]*os.File
}

// NewTrainingEmitter ensures dir exists and returns an emitter over it.
func NewTrainingEmitter(dir string, log zerolog.Logger) (*TrainingEmitter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create training data dir: %w", err)
	}
	return &TrainingEmitter{
		dir:   dir,
		log:   log.With().Str("component", "training_emitter").Logger(),
		files: make(map[domain.Category]*os.File),
	}, nil
}

// Emit appends one training line to TRAINING_DATA_DIR/{category}.jsonl,
// creating the file if absent. Failures are logged, not returned as fatal —
// the training log is regenerable from the journal.
func (e *TrainingEmitter) Emit(category domain.Category, line domain.TrainingLine) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.fileFor(category)
	if err != nil {
		e.log.Error().Err(err).Str("category", string(category)).Msg("open training file failed")
		return
	}

	data, err := json.Marshal(line)
	if err != nil {
		e.log.Error().Err(err).Msg("marshal training line failed")
		return
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		e.log.Error().Err(err).Str("category", string(category)).Msg("append training line failed")
	}
}

func (e *TrainingEmitter) fileFor(category domain.Category) (*os.File, error) {
	if f, ok := e.files[category]; ok {
		return f, nil
	}
	path := filepath.Join(e.dir, string(category)+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	e.files[category] = f
	return f, nil
}

// Close releases open file handles, best-effort.
func (e *TrainingEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range e.files {
		_ = f.Close()
	}
}
