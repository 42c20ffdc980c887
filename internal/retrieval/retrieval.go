// Package retrieval finds past projects similar to the scope being built.
// It wraps a vector index plus an embedding backend and degrades to an
// empty result set when either is unavailable: recommendations are never
// allowed to block scoping.
package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scopewell/scope-copilot/internal/model"
)

// Retriever returns past projects similar to a text probe, best first.
type Retriever interface {
	FindSimilar(ctx context.Context, probe string, k int) ([]model.RetrievalHit, error)
}

// Embedder turns a text probe into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Adapter bounds an inner Retriever with a timeout and absorbs its
// failures, returning an empty hit list plus a degradation flag the caller
// records in the turn's trace.
type Adapter struct {
	inner   Retriever
	timeout time.Duration
}

// NewAdapter wraps inner. A zero timeout means no extra bound beyond the
// caller's context.
func NewAdapter(inner Retriever, timeout time.Duration) *Adapter {
	return &Adapter{inner: inner, timeout: timeout}
}

// FindSimilar returns at most k hits. On any backend failure it returns
// (nil, true): empty results, degraded.
func (a *Adapter) FindSimilar(ctx context.Context, probe string, k int) (hits []model.RetrievalHit, degraded bool) {
	if a.inner == nil || probe == "" || k <= 0 {
		return nil, false
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	hits, err := a.inner.FindSimilar(ctx, probe, k)
	if err != nil {
		zap.L().Warn("retrieval: degraded, proceeding without recommendations",
			zap.Error(err),
		)
		return nil, true
	}
	return hits, false
}
