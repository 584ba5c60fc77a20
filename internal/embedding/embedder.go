// Package embedding holds helpers shared by the embedder implementations.
package embedding

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"contractqa/internal/domain"
)

// DefaultBatchSize is the number of texts sent per embedding request.
const DefaultBatchSize = 32

// Limited paces calls to the wrapped embedder with a token bucket.
type Limited struct {
	domain.Embedder
	limiter *rate.Limiter
}

// NewLimited wraps e so that at most rps requests per second are issued.
// A non-positive rps returns e unchanged.
func NewLimited(e domain.Embedder, rps float64) domain.Embedder {
	if rps <= 0 {
		return e
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Limited{Embedder: e, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Prepare prepares the wrapped embedder and keeps pacing it with the same
// limiter.
func (l *Limited) Prepare(corpus []string) (domain.Embedder, error) {
	inner, err := l.Embedder.Prepare(corpus)
	if err != nil {
		return nil, err
	}
	return &Limited{Embedder: inner, limiter: l.limiter}, nil
}

func (l *Limited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Embedder.Embed(ctx, text)
}

func (l *Limited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Embedder.EmbedBatch(ctx, texts)
}

func (l *Limited) wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		// Wait reports "would exceed deadline" without wrapping the context error.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, ok := ctx.Deadline(); ok {
			return context.DeadlineExceeded
		}
		return err
	}
	return nil
}

// EmbedAll embeds texts in batches of batchSize, giving each request its own
// timeout. Vectors are returned in input order.
func EmbedAll(ctx context.Context, e domain.Embedder, texts []string, batchSize int, timeout time.Duration) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := embedBatch(ctx, e, texts[start:end], timeout)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func embedBatch(ctx context.Context, e domain.Embedder, texts []string, timeout time.Duration) ([][]float32, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return e.EmbedBatch(ctx, texts)
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
