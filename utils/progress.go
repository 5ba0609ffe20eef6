package utils

import (
	"sync"

	"go.uber.org/atomic"
)

// Progress tracks how far a long running operation has got. The counters may be
// updated from one goroutine while others read them. A nil *Progress ignores
// updates and reads as zero, so operations can take one optionally.
type Progress struct {
	mu     sync.Mutex
	phase  string
	target atomic.Uint64
	value  atomic.Uint64
}

// NewProgress returns a tracker for the named phase. A target of zero means
// the total is unknown.
func NewProgress(phase string, target uint64) *Progress {
	p := &Progress{phase: phase}
	p.target.Store(target)
	return p
}

// Reset starts a new phase with the given target and zero progress.
func (p *Progress) Reset(phase string, target uint64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = phase
	p.target.Store(target)
	p.value.Store(0)
}

// Phase returns the name of the current phase.
func (p *Progress) Phase() string {
	if p == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Target returns the target value, or zero when unknown.
func (p *Progress) Target() uint64 {
	if p == nil {
		return 0
	}
	return p.target.Load()
}

// Value returns the current progress value.
func (p *Progress) Value() uint64 {
	if p == nil {
		return 0
	}
	return p.value.Load()
}

// Ratio returns Value/Target, or the raw value when the target is unknown.
func (p *Progress) Ratio() float64 {
	target, value := p.Target(), p.Value()
	if target > 0 {
		return float64(value) / float64(target)
	}
	return float64(value)
}

// Set replaces the progress value.
func (p *Progress) Set(v uint64) {
	if p == nil {
		return
	}
	p.value.Store(v)
}

// Increment adds one step.
func (p *Progress) Increment() {
	p.Add(1)
}

// Add adds n steps.
func (p *Progress) Add(n uint64) {
	if p == nil {
		return
	}
	p.value.Add(n)
}

// ProgressSnapshot is a consistent copy of a Progress.
type ProgressSnapshot struct {
	Phase  string
	Target uint64
	Value  uint64
}

// Snapshot reads phase, target and value under the phase lock so a concurrent
// Reset is never observed half applied.
func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProgressSnapshot{Phase: p.phase, Target: p.target.Load(), Value: p.value.Load()}
}
