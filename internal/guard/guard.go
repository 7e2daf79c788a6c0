// Package guard implements last-issued-wins sequencing for overlapping
// requests. Each (class, target) pair owns a monotonic counter; a response may
// mutate state only while the token captured at issue time is still current.
package guard

import (
	"sync"

	"time-to-sell/internal/domain"
)

// Class is a logical fetch class with its own counter space.
type Class string

const (
	ClassEvaluation   Class = "evaluation"
	ClassPriceHistory Class = "price-history"
)

type Token uint64

type key struct {
	class  Class
	target domain.IndexType
}

// SequenceGuard is safe for concurrent use.
type SequenceGuard struct {
	mu       sync.Mutex
	counters map[key]Token
}

func New() *SequenceGuard {
	return &SequenceGuard{counters: make(map[key]Token)}
}

// Begin increments the counter for (class, target) and returns its new value.
// Call it synchronously when issuing the request.
func (g *SequenceGuard) Begin(class Class, target domain.IndexType) Token {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := key{class: class, target: target}
	g.counters[k]++
	return g.counters[k]
}

// IsCurrent reports whether token is still the latest issued for
// (class, target).
func (g *SequenceGuard) IsCurrent(class Class, target domain.IndexType, token Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.counters[key{class: class, target: target}] == token
}

// Invalidate makes every outstanding token for (class, target) stale without
// issuing a new request.
func (g *SequenceGuard) Invalidate(class Class, target domain.IndexType) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counters[key{class: class, target: target}]++
}

// InvalidateTarget invalidates every class for target.
func (g *SequenceGuard) InvalidateTarget(target domain.IndexType) {
	g.Invalidate(ClassEvaluation, target)
	g.Invalidate(ClassPriceHistory, target)
}
