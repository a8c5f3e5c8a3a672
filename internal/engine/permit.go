package engine

import "sync/atomic"

// Permit is the single process-wide job-exclusion primitive (spec §4.G):
// non-reentrant, non-blocking acquisition, guaranteed release on every exit
// path. At most one of {Ingest, Recheck, Bulk-Reclassify} ever holds it.
type Permit interface {
	// TryAcquire returns true if the permit was acquired, false if another
	// job already holds it.
	TryAcquire(holder string) bool
	Release()
}

// localPermit is the in-process fallback used when no distributed lock is
// configured (RedisURL unset) — a single-process deployment needs nothing
// more than an atomic flag.
type localPermit struct {
	held atomic.Bool
}

// NewLocalPermit builds an in-process permit.
func NewLocalPermit() Permit {
	return &localPermit{}
}

func (p *localPermit) TryAcquire(_ string) bool {
	return p.held.CompareAndSwap(false, true)
}

func (p *localPermit) Release() {
	p.held.Store(false)
}
