// Package batch implements the TaskBatch entity and the task enumerator
// (SPEC_FULL.md §4.3, C3): a lazy, forward-only sequence over all
// (batch, replica) pairs, grounded on
// original_source/headers/simulator_t.h's task_batch_t and const_iterator.
package batch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/karurochori/simkernel/callback"
	"github.com/karurochori/simkernel/model"
	"github.com/karurochori/simkernel/observability"
	"github.com/karurochori/simkernel/pool"
	"github.com/karurochori/simkernel/task"
)

// Batch is one named group of identically configured simulation instances
// (SPEC_FULL.md §3, "TaskBatch").
type Batch[S, MS, D any] struct {
	Name         string
	InitialState S
	Terminate    model.Terminate[S]
	Instances    int

	Sync           int
	Backup         int
	SaveTrace      bool
	SaveModelState bool

	BatchCallback    callback.Callback
	InstanceCallback callback.Callback
	EventCallback    callback.Callback
}

// Set is the engine's ordered name-keyed mapping of batches: Order fixes
// the insertion order the enumerator walks, since Go maps have no stable
// iteration order of their own.
type Set[S, MS, D any] struct {
	Order   []string
	Batches map[string]Batch[S, MS, D]
}

// Enumerate returns a lazy sequence of runnable closures, one per
// (batch, replica) pair in batch-insertion order and ascending replica
// index within each batch, each capturing a stable snapshot of its
// identity — SPEC_FULL.md §4.3.
func Enumerate[S, MS, D any](
	runID string,
	workspace string,
	continueMode bool,
	set Set[S, MS, D],
	m model.Model[S, MS, D],
	observer observability.Observer,
) pool.Enumerator {
	return func(yield func(pool.TaskFunc) bool) {
		for _, name := range set.Order {
			b, ok := set.Batches[name]
			if !ok {
				continue
			}

			for replica := 0; replica < b.Instances; replica++ {
				fn := makeTaskFunc(runID, workspace, continueMode, name, replica, b, m, observer)
				if !yield(fn) {
					return
				}
			}
		}
	}
}

func makeTaskFunc[S, MS, D any](
	runID, workspace string,
	continueMode bool,
	name string,
	replica int,
	b Batch[S, MS, D],
	m model.Model[S, MS, D],
	observer observability.Observer,
) pool.TaskFunc {
	dir := filepath.Join(workspace, "tasks", name, fmt.Sprintf("%d", replica))

	return func(ctx context.Context) int {
		spec := task.Spec[S, MS, D]{
			RunID:   runID,
			Batch:   name,
			Replica: replica,
			Dir:     dir,

			Continue:     continueMode,
			InitialState: b.InitialState,

			Sync:           b.Sync,
			Backup:         b.Backup,
			SaveTrace:      b.SaveTrace,
			SaveModelState: b.SaveModelState,

			Model:     m,
			Terminate: b.Terminate,

			EventCallback:    b.EventCallback,
			InstanceCallback: b.InstanceCallback,
			BatchCallback:    b.BatchCallback,

			Observer: observer,
		}

		return task.Run(ctx, spec).Status
	}
}
