package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler is the time-driven trigger for Ingest and Recheck (spec §4.G):
// it fires on its own thread of control and attempts the permit
// non-blockingly on every tick, exactly like a manual control-surface call.
type Scheduler struct {
	engine *Engine
	log    zerolog.Logger

	ingestInterval  time.Duration
	recheckInterval time.Duration
	ingestEnabled   bool
	recheckEnabled  bool
	ingestLimit     int
}

// SchedulerConfig configures the two periodic jobs.
type SchedulerConfig struct {
	IngestInterval  time.Duration
	RecheckInterval time.Duration
	IngestEnabled   bool
	RecheckEnabled  bool
	IngestLimit     int
}

// NewScheduler builds a Scheduler over an already-wired Engine.
func NewScheduler(e *Engine, cfg SchedulerConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		engine:          e,
		log:             log.With().Str("component", "scheduler").Logger(),
		ingestInterval:  cfg.IngestInterval,
		recheckInterval: cfg.RecheckInterval,
		ingestEnabled:   cfg.IngestEnabled,
		recheckEnabled:  cfg.RecheckEnabled,
		ingestLimit:     cfg.IngestLimit,
	}
}

// Run blocks until ctx is cancelled, firing Ingest and Recheck on their
// configured cadences. Each tick's job runs synchronously on the
// scheduler's own goroutine; a skipped permit is logged at debug level and
// the loop continues undisturbed.
func (s *Scheduler) Run(ctx context.Context) {
	var ingestTicker, recheckTicker *time.Ticker

	if s.ingestEnabled && s.ingestInterval > 0 {
		ingestTicker = time.NewTicker(s.ingestInterval)
		defer ingestTicker.Stop()
	}
	if s.recheckEnabled && s.recheckInterval > 0 {
		recheckTicker = time.NewTicker(s.recheckInterval)
		defer recheckTicker.Stop()
	}

	var ingestC, recheckC <-chan time.Time
	if ingestTicker != nil {
		ingestC = ingestTicker.C
	}
	if recheckTicker != nil {
		recheckC = recheckTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ingestC:
			result, err := s.engine.Ingest(ctx, s.ingestLimit)
			if err != nil {
				s.log.Error().Err(err).Msg("scheduled ingest failed")
				continue
			}
			s.log.Debug().Str("status", string(result.Status)).Int("processed", result.ProcessedCount).Msg("scheduled ingest done")
		case <-recheckC:
			result, err := s.engine.Recheck(ctx)
			if err != nil {
				s.log.Error().Err(err).Msg("scheduled recheck failed")
				continue
			}
			s.log.Debug().Str("status", string(result.Status)).Int("processed", result.ProcessedCount).Msg("scheduled recheck done")
		}
	}
}
