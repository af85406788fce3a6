// Package limiter provides the shared counting semaphores that bound
// concurrent work. One Pool instance must be shared by every caller that
// should be throttled together.
package limiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	name     string
	size     int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

// New returns a pool admitting at most size concurrent holders. Sizes
// below 1 are raised to 1.
func New(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{name: name, size: int64(size), sem: semaphore.NewWeighted(int64(size))}
}

func (p *Pool) Name() string { return p.name }

func (p *Pool) Size() int { return int(p.size) }

// InFlight is the number of slots currently held.
func (p *Pool) InFlight() int { return int(p.inFlight.Load()) }

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.inFlight.Add(1)
	return nil
}

func (p *Pool) Release() {
	p.inFlight.Add(-1)
	p.sem.Release(1)
}

// Do runs fn while holding a slot.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()
	return fn(ctx)
}
