// Package optimistic applies local state changes before the remote write
// confirms them and restores the exact prior snapshot when it fails.
package optimistic

import "context"

// Commit performs the remote write for one applied mutation. It returns the
// authoritative value: the optimistic value on success, or the pre-transform
// snapshot together with the write error on failure.
type Commit[T any] func(ctx context.Context) (T, error)

// RollbackObserver is told about every rolled-back mutation.
type RollbackObserver interface {
	OptimisticRollback()
}

// Engine builds optimistic mutations over values of type T. clone must
// return a copy that shares no mutable memory with its input, so that the
// snapshot survives whatever transform does.
type Engine[T any] struct {
	clone    func(T) T
	observer RollbackObserver
}

// New returns an Engine. observer may be nil.
func New[T any](clone func(T) T, observer RollbackObserver) *Engine[T] {
	return &Engine[T]{clone: clone, observer: observer}
}

// Apply snapshots current, runs transform on a copy, and returns the
// optimistic value for immediate display with the Commit that persists it.
// persist receives the optimistic value. There is no retry and no re-fetch.
func (e *Engine[T]) Apply(current T, transform func(T) T, persist func(ctx context.Context, next T) error) (T, Commit[T]) {
	snapshot := e.clone(current)
	next := transform(e.clone(current))

	commit := func(ctx context.Context) (T, error) {
		if err := persist(ctx, next); err != nil {
			if e.observer != nil {
				e.observer.OptimisticRollback()
			}
			return e.clone(snapshot), err
		}
		return next, nil
	}
	return next, commit
}
