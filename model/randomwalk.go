package model

import (
	"encoding/json"
	"math"
	"math/rand"
)

// Vector is the reference State/Delta type: a fixed-dimension vector of
// float64 components. It implements plain JSON array marshaling so it can
// serve as either a differential or non-differential model's State,
// matching the source's `fake_model::state_t` (a trivial, serializable,
// additive state).
type Vector []float64

// Combine returns state ⊕ delta, elementwise. Grounded on
// SPEC_FULL.md §3 invariant 2.
func Combine(state, delta Vector) Vector {
	out := make(Vector, len(state))
	copy(out, state)
	for i, d := range delta {
		if i < len(out) {
			out[i] += d
		}
	}
	return out
}

// Difference returns newState ⊖ oldState, elementwise.
func Difference(newState, oldState Vector) Vector {
	delta := make(Vector, len(newState))
	for i := range newState {
		if i < len(oldState) {
			delta[i] = newState[i] - oldState[i]
		} else {
			delta[i] = newState[i]
		}
	}
	return delta
}

// Norm returns the Euclidean norm, used by the reference termination
// predicates below.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// RandomWalkState is the recoverable ModelState for RandomWalk: a PRNG seed
// plus the number of draws taken so far, sufficient to reconstruct the PRNG
// stream deterministically across a resume.
type RandomWalkState struct {
	Seed  int64 `json:"seed"`
	Draws int64 `json:"draws"`

	rng *rand.Rand
}

// MarshalJSON excludes the transient rng handle.
func (s RandomWalkState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Seed  int64 `json:"seed"`
		Draws int64 `json:"draws"`
	}{s.Seed, s.Draws})
}

// UnmarshalJSON resets the transient rng handle; it is lazily rebuilt and
// fast-forwarded to Draws on first use.
func (s *RandomWalkState) UnmarshalJSON(data []byte) error {
	var raw struct {
		Seed  int64 `json:"seed"`
		Draws int64 `json:"draws"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Seed, s.Draws = raw.Seed, raw.Draws
	s.rng = nil
	return nil
}

func (s *RandomWalkState) stream() *rand.Rand {
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(s.Seed))
		for i := int64(0); i < s.Draws; i++ {
			s.rng.NormFloat64()
		}
	}
	return s.rng
}

// RandomWalkConfig configures the reference differential random-walk model:
// each step draws one Gaussian increment per dimension, scaled by Sigma.
type RandomWalkConfig struct {
	Dimensions int     `json:"dimensions"`
	Sigma      float64 `json:"sigma"`
}

// RandomWalkStep is grounded on `original_source/apps/main/main.cpp`'s
// fake_model: a differential, recoverable model whose step draws a small
// Gaussian delta per dimension.
func RandomWalkStep(cfg RandomWalkConfig) Step[Vector, RandomWalkState, Vector] {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 1
	}
	sigma := cfg.Sigma
	if sigma <= 0 {
		sigma = 1.0
	}

	return func(_ Vector, mstate *RandomWalkState, _ StepContext) (Vector, error) {
		rng := mstate.stream()
		delta := make(Vector, dims)
		for i := range delta {
			delta[i] = rng.NormFloat64() * sigma
			mstate.Draws++
		}
		return delta, nil
	}
}

// RandomWalkModel builds the Model descriptor for the reference
// differential random-walk model.
func RandomWalkModel(cfg RandomWalkConfig) Model[Vector, RandomWalkState, Vector] {
	return Model[Vector, RandomWalkState, Vector]{
		Step:         RandomWalkStep(cfg),
		Combine:      Combine,
		Differential: true,
		Recoverable:  true,
	}
}

// StepLimit returns a reference Terminate predicate: stop once step steps
// have executed. Stateless, so one instance may be shared across every
// replica of a batch.
func StepLimit(limit int) Terminate[Vector] {
	return func(_ Vector, step int) bool {
		return step >= limit
	}
}

// NormThreshold returns a reference Terminate predicate: stop once the
// state's Euclidean norm reaches or exceeds threshold.
func NormThreshold(threshold float64) Terminate[Vector] {
	return func(state Vector, _ int) bool {
		return state.Norm() >= threshold
	}
}
