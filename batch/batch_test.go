package batch_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/karurochori/simkernel/batch"
	"github.com/karurochori/simkernel/model"
	"github.com/karurochori/simkernel/observability"
)

type mstate struct{}

func counterModel() model.Model[int, mstate, int] {
	return model.Model[int, mstate, int]{
		Step:         func(state int, _ *mstate, _ model.StepContext) (int, error) { return 1, nil },
		Combine:      func(state int, delta int) int { return state + delta },
		Differential: true,
		Recoverable:  true,
	}
}

func stepLimit(limit int) model.Terminate[int] {
	return func(_ int, step int) bool { return step >= limit }
}

func TestEnumerateOrderAndReplicaCount(t *testing.T) {
	dir := t.TempDir()

	set := batch.Set[int, mstate, int]{
		Order: []string{"second", "first"},
		Batches: map[string]batch.Batch[int, mstate, int]{
			"first":  {Name: "first", Instances: 2, Terminate: stepLimit(1)},
			"second": {Name: "second", Instances: 1, Terminate: stepLimit(1)},
		},
	}

	// Each task records its (batch, replica) identity on its first step, so
	// the run order of the enumerated closures can be checked.
	var runOrder []string
	m := counterModel()
	m.Step = func(_ int, _ *mstate, ctx model.StepContext) (int, error) {
		if ctx.Step == 0 {
			runOrder = append(runOrder, ctx.Batch+"/"+strconv.Itoa(ctx.Replica))
		}
		return 1, nil
	}

	var seenDirs []string
	for fn := range batch.Enumerate("run", dir, false, set, m, observability.NoOpObserver{}) {
		status := fn(context.Background())
		if status != 0 {
			t.Errorf("unexpected task failure")
		}
	}

	want := []string{"second/0", "first/0", "first/1"}
	if len(runOrder) != len(want) {
		t.Fatalf("run order = %v, want %v", runOrder, want)
	}
	for i, name := range want {
		if runOrder[i] != name {
			t.Errorf("run order[%d] = %q, want %q", i, runOrder[i], name)
		}
	}

	for _, name := range want {
		p := filepath.Join(dir, "tasks", filepath.FromSlash(name), "status")
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
		seenDirs = append(seenDirs, p)
	}
	if len(seenDirs) != 3 {
		t.Fatalf("expected 3 task directories, got %d", len(seenDirs))
	}
}

func TestEnumerateStopsOnEarlyReturn(t *testing.T) {
	dir := t.TempDir()

	set := batch.Set[int, mstate, int]{
		Order: []string{"a", "b"},
		Batches: map[string]batch.Batch[int, mstate, int]{
			"a": {Name: "a", Instances: 3, Terminate: stepLimit(1)},
			"b": {Name: "b", Instances: 3, Terminate: stepLimit(1)},
		},
	}

	count := 0
	for fn := range batch.Enumerate("run", dir, false, set, counterModel(), observability.NoOpObserver{}) {
		fn(context.Background())
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestEnumerateSkipsOrderEntryWithoutBatch(t *testing.T) {
	dir := t.TempDir()

	set := batch.Set[int, mstate, int]{
		Order: []string{"missing", "present"},
		Batches: map[string]batch.Batch[int, mstate, int]{
			"present": {Name: "present", Instances: 1, Terminate: stepLimit(1)},
		},
	}

	count := 0
	for fn := range batch.Enumerate("run", dir, false, set, counterModel(), observability.NoOpObserver{}) {
		fn(context.Background())
		count++
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (the order entry with no matching batch must be skipped)", count)
	}
}
