// Package workerpool provides the process-wide bounded pool fork-join
// branches run on.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of units of work running at once across every
// group created from it.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// New creates a pool with size slots. Sizes below one are raised to one.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// Do runs fn once a slot is free. It returns ctx.Err() if the context ends
// while waiting.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// Group is a set of units sharing a cancellation scope: the first failure
// cancels the rest.
type Group struct {
	pool *Pool
	eg   *errgroup.Group
	ctx  context.Context
}

// Group starts a new group bound to ctx. The returned context is canceled
// when any unit fails or Wait returns.
func (p *Pool) Group(ctx context.Context) (*Group, context.Context) {
	eg, gctx := errgroup.WithContext(ctx)
	return &Group{pool: p, eg: eg, ctx: gctx}, gctx
}

// Go submits fn to the pool.
func (g *Group) Go(fn func(context.Context) error) {
	g.eg.Go(func() error {
		return g.pool.Do(g.ctx, fn)
	})
}

// Wait blocks until every unit has finished and returns the first error.
func (g *Group) Wait() error {
	return g.eg.Wait()
}
