package encode

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/maauso/slideshow-api/internal/metrics"
)

// Pool bounds how many encodes run at once across all jobs.
type Pool struct {
	enc  Encoder
	sem  *semaphore.Weighted
	size int
}

// NewPool wraps enc so that at most size encodes run concurrently.
// Values below 1 are treated as 1.
func NewPool(enc Encoder, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{enc: enc, sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int { return p.size }

// Encode waits for a free slot, then runs the wrapped encoder. Cancelling
// ctx while waiting returns without encoding.
func (p *Pool) Encode(ctx context.Context, req Request) (Result, error) {
	metrics.QueuedEncodes.Inc()
	err := p.sem.Acquire(ctx, 1)
	metrics.QueuedEncodes.Dec()
	if err != nil {
		return Result{}, fmt.Errorf("wait for encoder slot: %w", err)
	}
	defer p.sem.Release(1)

	metrics.ActiveEncodes.Inc()
	defer metrics.ActiveEncodes.Dec()

	return p.enc.Encode(ctx, req)
}

var _ Encoder = (*Pool)(nil)
