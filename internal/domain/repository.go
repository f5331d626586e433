package domain

import (
	"context"
	"time"
)

// Provider is one external (or local) source of nutrition candidates.
// Lookup returns nil for every kind of failure; it never panics by contract,
// although the resolver recovers if one does.
type Provider interface {
	Name() string
	Supports(kind QueryKind) bool
	Lookup(ctx context.Context, q Query) *Candidate
}

// ResultCache memoizes resolution results by normalized query key
type ResultCache interface {
	Get(ctx context.Context, key string) (*ResolutionResult, error)
	Set(ctx context.Context, key string, value *ResolutionResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear()
	Size() int
}

// Completer sends a single prompt to a text-completion endpoint and returns the raw text
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
