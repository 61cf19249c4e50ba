package client

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/semaphore"
)

// Blocking runs every call on the caller's goroutine.
type Blocking struct {
	c *Client
}

var _ Executor = (*Blocking)(nil)

// NewBlocking returns a blocking executor over c.
func NewBlocking(c *Client) *Blocking { return &Blocking{c: c} }

// Call implements Executor.
func (b *Blocking) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return b.c.Call(ctx, method, params...)
}

// Client returns the underlying client.
func (b *Blocking) Client() *Client { return b.c }

// Async runs calls on background goroutines, at most a fixed number at once.
type Async struct {
	c   *Client
	sem *semaphore.Weighted
}

var _ Executor = (*Async)(nil)

// NewAsync returns an async executor over c. A non-positive concurrency
// uses the client's configured AsyncConcurrency.
func NewAsync(c *Client, concurrency int64) *Async {
	if concurrency <= 0 {
		concurrency = c.opts.AsyncConcurrency
	}
	return &Async{c: c, sem: semaphore.NewWeighted(concurrency)}
}

// Client returns the underlying client.
func (a *Async) Client() *Client { return a.c }

// Go starts method in the background. The returned future completes once a
// slot is free and the call has finished, or ctx ends first.
func (a *Async) Go(ctx context.Context, method string, params ...any) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		if err := a.sem.Acquire(ctx, 1); err != nil {
			f.err = err
			return
		}
		defer a.sem.Release(1)
		f.result, f.err = a.c.Call(ctx, method, params...)
	}()
	return f
}

// Call implements Executor by starting the call and waiting for it.
func (a *Async) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return a.Go(ctx, method, params...).Wait(ctx)
}

// Future is the pending result of an Async call.
type Future struct {
	done   chan struct{}
	result json.RawMessage
	err    error
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the call completes or ctx ends.
func (f *Future) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
