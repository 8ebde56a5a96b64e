// Package flight is a keyed cache that runs at most one computation per key
// at a time and keeps results for a fixed time.
package flight

import (
	"context"
	"sync"
	"time"
)

type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	finished map[K]entry[V]
	pending  map[K]*job[V]

	work func(context.Context, K) (V, error)
	ttl  time.Duration
	now  func() time.Time
}

type entry[V any] struct {
	val      V
	deadline time.Time // zero => never expires
}

type job[V any] struct {
	val  V
	err  error
	done chan struct{}
}

// NewCache keeps results for ttl. ttl <= 0 keeps them forever. Errors are
// never cached.
func NewCache[K comparable, V any](ttl time.Duration, work func(context.Context, K) (V, error)) *Cache[K, V] {
	return &Cache[K, V]{
		finished: make(map[K]entry[V]),
		pending:  make(map[K]*job[V]),
		work:     work,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the cached value for k, joins a computation already running
// for k, or starts one. Joiners stop waiting when their own ctx ends; the
// computation itself runs under the ctx of the caller that started it.
func (c *Cache[K, V]) Get(ctx context.Context, k K) (V, error) {
	c.mu.Lock()
	if e, ok := c.finished[k]; ok {
		if e.deadline.IsZero() || c.now().Before(e.deadline) {
			c.mu.Unlock()
			return e.val, nil
		}
		delete(c.finished, k)
	}

	if j, ok := c.pending[k]; ok {
		c.mu.Unlock()
		select {
		case <-j.done:
			return j.val, j.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}

	j := &job[V]{done: make(chan struct{})}
	c.pending[k] = j
	c.mu.Unlock()

	j.val, j.err = c.work(ctx, k)

	c.mu.Lock()
	if j.err == nil {
		e := entry[V]{val: j.val}
		if c.ttl > 0 {
			e.deadline = c.now().Add(c.ttl)
		}
		c.finished[k] = e
	}
	delete(c.pending, k)
	close(j.done)
	c.mu.Unlock()

	return j.val, j.err
}

// Forget drops the cached value for k.
func (c *Cache[K, V]) Forget(k K) {
	c.mu.Lock()
	delete(c.finished, k)
	c.mu.Unlock()
}

// Len is the number of cached values, expired ones included.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.finished)
}
