package livequery

import (
	"context"
	"sync"
)

type Opener[Q comparable, T any] func(ctx context.Context, query Q) (*Subscription[T], error)

// Binding holds at most one live subscription and swaps it when the query
// identity changes. The previous subscription is released before the next
// one is opened.
type Binding[Q comparable, T any] struct {
	open Opener[Q, T]

	mu    sync.Mutex
	query Q
	sub   *Subscription[T]
}

func NewBinding[Q comparable, T any](open Opener[Q, T]) *Binding[Q, T] {
	return &Binding[Q, T]{open: open}
}

// Bind returns the subscription for query, reusing the current one when the
// query is unchanged and it is still running.
func (b *Binding[Q, T]) Bind(ctx context.Context, query Q) (*Subscription[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sub != nil && b.query == query && !closed(b.sub.done) {
		return b.sub, nil
	}
	b.releaseLocked()

	sub, err := b.open(ctx, query)
	if err != nil {
		return nil, err
	}
	b.sub = sub
	b.query = query
	return sub, nil
}

func (b *Binding[Q, T]) Current() (*Subscription[T], Q, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sub, b.query, b.sub != nil
}

func (b *Binding[Q, T]) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseLocked()
}

func (b *Binding[Q, T]) releaseLocked() {
	if b.sub == nil {
		return
	}
	b.sub.Close()
	b.sub = nil
	var zero Q
	b.query = zero
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
