// Package callback implements the Callback ABI (SPEC_FULL.md §6.3): a
// single invoke operation fired at the engine, batch, instance, and step
// hook points, plus the built-in HTTP/shell callback grounded on
// original_source/headers/basic-callback.h.
package callback

import (
	"context"

	"github.com/karurochori/simkernel/model"
)

// Callback is invoked at one of the four hook points. step carries the
// borrowed step/task identity; it never exposes mutable engine state,
// matching the explicit-context-passing design note in SPEC_FULL.md §9.
type Callback func(ctx context.Context, step model.StepContext) error

// Chain runs every non-nil callback in order and returns the first error
// encountered, continuing to run the remaining callbacks regardless (the
// source fires url and script independently of one another; a multi-hook
// chain preserves the same "both fire" semantics for user-supplied hooks
// registered together).
func Chain(callbacks ...Callback) Callback {
	return func(ctx context.Context, step model.StepContext) error {
		var firstErr error
		for _, cb := range callbacks {
			if cb == nil {
				continue
			}
			if err := cb(ctx, step); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}
