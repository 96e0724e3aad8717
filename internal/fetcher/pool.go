package fetcher

import (
	"context"

	"golang.org/x/time/rate"
)

// Pool caps the number of requests in flight and optionally their start rate.
type Pool struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

// NewPool returns a pool with size slots. A positive rps also throttles how
// fast slots are handed out.
func NewPool(size int, rps float64) *Pool {
	p := &Pool{
		sem: make(chan struct{}, size),
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return p
}

// Acquire blocks until a slot is free or ctx is done. Every successful
// Acquire must be paired with Release.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			<-p.sem
			return err
		}
	}
	return nil
}

func (p *Pool) Release() {
	<-p.sem
}

func (p *Pool) Size() int {
	return cap(p.sem)
}
