package engine

import (
	"io"

	"github.com/karurochori/simkernel/observability"
)

// options holds the construction-time overrides an Engine accepts, following
// the functional-options idiom used throughout the ambient stack. These
// options are independent of the model's type parameters, so Option itself
// stays a plain (non-generic) function type; only New is generic.
type options struct {
	out      io.Writer
	err      io.Writer
	observer observability.Observer
	runID    string
}

// Option configures an Engine at construction time.
type Option func(*options)

// WithOut overrides the coordinator-level stdout stream (default os.Stdout).
func WithOut(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithErr overrides the coordinator-level stderr stream (default os.Stderr).
func WithErr(w io.Writer) Option {
	return func(o *options) { o.err = w }
}

// WithObserver overrides the named observer resolved from the
// configuration's "observer" field.
func WithObserver(observer observability.Observer) Option {
	return func(o *options) { o.observer = observer }
}

// WithRunID overrides the generated run identifier, mainly for tests that
// need a deterministic value.
func WithRunID(runID string) Option {
	return func(o *options) { o.runID = runID }
}
