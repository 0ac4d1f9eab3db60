// Package pool keeps a bounded free-list of reusable result buffers.
//
// Buffers are reset when they come back, so a caller never observes a
// previous user's items. The pool retains at most MaxRetained buffers and
// drops buffers that grew past MaxCapacity rather than pinning their memory.
package pool

import "sync"

const (
	// DefaultMaxRetained is the number of idle buffers kept by New.
	DefaultMaxRetained = 16

	// DefaultInitialCapacity is the capacity of a freshly created buffer.
	DefaultInitialCapacity = 16

	// DefaultMaxCapacity is the largest buffer capacity worth retaining.
	DefaultMaxCapacity = 4096
)

// Buffer is a growable slice owned by whoever acquired it from a Pool.
type Buffer[T any] struct {
	items []T
}

// Append adds v to the buffer.
func (b *Buffer[T]) Append(v T) {
	b.items = append(b.items, v)
}

// Len returns the number of items.
func (b *Buffer[T]) Len() int {
	return len(b.items)
}

// Items returns the buffered items. The slice aliases the buffer and is
// invalid once the buffer is released.
func (b *Buffer[T]) Items() []T {
	return b.items
}

// Copy returns the items in a fresh slice that outlives the buffer.
func (b *Buffer[T]) Copy() []T {
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// reset drops every item so pooled buffers never leak references.
func (b *Buffer[T]) reset() {
	clear(b.items)
	b.items = b.items[:0]
}

// Option configures a Pool.
type Option func(*config)

type config struct {
	maxRetained     int
	initialCapacity int
	maxCapacity     int
}

// WithMaxRetained sets how many idle buffers the pool keeps.
func WithMaxRetained(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxRetained = n
		}
	}
}

// WithInitialCapacity sets the capacity of newly created buffers.
func WithInitialCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.initialCapacity = n
		}
	}
}

// WithMaxCapacity sets the largest capacity a returned buffer may have and
// still be retained.
func WithMaxCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxCapacity = n
		}
	}
}

// Pool is safe for concurrent use.
type Pool[T any] struct {
	mu   sync.Mutex
	free []*Buffer[T]
	cfg  config

	created int
}

// New creates a pool.
func New[T any](opts ...Option) *Pool[T] {
	cfg := config{
		maxRetained:     DefaultMaxRetained,
		initialCapacity: DefaultInitialCapacity,
		maxCapacity:     DefaultMaxCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Pool[T]{cfg: cfg}
}

// Get returns an empty buffer, reusing an idle one when available.
func (p *Pool[T]) Get() *Buffer[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		return b
	}
	p.created++
	return &Buffer[T]{items: make([]T, 0, p.cfg.initialCapacity)}
}

// Put resets b and retains it if the pool has room. The caller must not
// use b afterwards.
func (p *Pool[T]) Put(b *Buffer[T]) {
	if b == nil {
		return
	}
	b.reset()
	if cap(b.items) > p.cfg.maxCapacity {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) < p.cfg.maxRetained {
		p.free = append(p.free, b)
	}
}

// Idle returns the number of retained buffers.
func (p *Pool[T]) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Created returns how many buffers the pool has allocated.
func (p *Pool[T]) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}
