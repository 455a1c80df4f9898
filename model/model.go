// Package model defines the capability contract the engine requires of a
// plugged-in simulation model, and the reference models shipped alongside
// the harness.
//
// The engine is polymorphic over a type M providing a step function, a
// termination predicate, and a state algebra (combine for differential
// models, difference for non-differential models with tracing enabled).
// Go expresses this via generics rather than runtime interface dispatch:
// the three associated types (State, Delta, ModelState) are type
// parameters, and the two metadata flags are plain struct fields read once
// at construction, matching the source's `inline const static bool`
// members and preserving the original's static-dispatch intent (see
// SPEC_FULL.md §9, "Polymorphism over plug-ins").
package model

// StepContext is the borrowed, read-only view of task identity passed to a
// step function and to every callback hook. It carries no back-reference to
// mutable engine state, matching the "explicit context passing" design note
// in SPEC_FULL.md §9 ("Reference cycles").
type StepContext struct {
	RunID   string
	Batch   string
	Replica int
	Step    int
}

// Step is a user-supplied model's core operation. It must not touch the
// filesystem and must be safe to invoke concurrently from multiple
// goroutines provided each invocation is given a distinct (state, mstate)
// pair — the engine never shares a single ModelState across replicas.
//
// For a differential model it returns the increment to combine into State;
// for a non-differential model it returns the full replacement State.
type Step[S, MS, D any] func(state S, mstate *MS, ctx StepContext) (D, error)

// Terminate is a pure predicate over State, invoked once per step before
// the step is run. It additionally receives the step index so that
// step-budget predicates (e.g. StepLimit) stay stateless and therefore
// safely shareable across the concurrently running replicas of one batch —
// the source's per-instance `termination_t` is copy-constructed per task
// and may hold state, but a shared Go closure captured by all of a batch's
// replicas must not.
type Terminate[S any] func(state S, step int) bool

// Model bundles the associated operations and the two metadata flags the
// engine needs.
//
//   - Combine is required when Differential is true: it folds a Delta into
//     State (state ⊕ delta).
//   - Difference is required when Differential is false and tracing is
//     requested: it derives a Delta from the pair of states that produced
//     it (delta = new ⊖ old).
//
// For a non-differential model, Step's return value is the full
// replacement State rather than an increment; instantiate Model with D
// equal to S in that case (e.g. Model[Vector, MS, Vector]) so the task
// runner can treat the returned D as the next S directly.
type Model[S, MS, D any] struct {
	Step         Step[S, MS, D]
	Combine      func(state S, delta D) S
	Difference   func(newState, oldState S) D
	Differential bool
	Recoverable  bool
}
