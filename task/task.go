// Package task implements the task runner (SPEC_FULL.md §4.2, C2): the
// per-instance recovery protocol, step loop, two-tier checkpoint cadence,
// and trace emission, grounded on
// original_source/headers/simulator_t.h's task_t::operator().
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/karurochori/simkernel/callback"
	"github.com/karurochori/simkernel/model"
	"github.com/karurochori/simkernel/observability"
)

const (
	fileOut         = ".out"
	fileErr         = ".err"
	fileStatus      = "status"
	fileStatusCopy  = "status.copy"
	fileMStatus     = "mstatus"
	fileMStatusCopy = "mstatus.copy"
	fileTrace       = "trace"
	fileTraceCopy   = "trace.copy"
)

// Spec bundles everything one task invocation needs, passed by value so no
// task holds a permanent back-reference to its batch or engine — the
// "explicit context passing" design note in SPEC_FULL.md §9.
type Spec[S, MS, D any] struct {
	RunID   string
	Batch   string
	Replica int
	Dir     string // workspace/tasks/<batch>/<replica>

	Continue     bool
	InitialState S

	Sync           int
	Backup         int
	SaveTrace      bool
	SaveModelState bool

	Model     model.Model[S, MS, D]
	Terminate model.Terminate[S]

	EventCallback    callback.Callback
	InstanceCallback callback.Callback
	BatchCallback    callback.Callback

	Observer observability.Observer
}

// Result is the task's outcome: Status 0 on clean termination, 1 if the
// step loop or termination flush failed.
type Result struct {
	Status   int
	Steps    int
	Duration time.Duration
	Err      error
}

// Run executes one (batch, replica) pair end-to-end per SPEC_FULL.md §4.2.
func Run[S, MS, D any](ctx context.Context, spec Spec[S, MS, D]) Result {
	start := time.Now()

	if err := os.MkdirAll(spec.Dir, 0o755); err != nil {
		return Result{Status: 1, Duration: time.Since(start), Err: fmt.Errorf("%w: mkdir %s: %v", ErrStreamOpen, spec.Dir, err)}
	}

	outPath := filepath.Join(spec.Dir, fileOut)
	errPath := filepath.Join(spec.Dir, fileErr)

	out, err := os.OpenFile(outPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{Status: 1, Duration: time.Since(start), Err: fmt.Errorf("%w: %s: %v", ErrStreamOpen, outPath, err)}
	}
	defer out.Close()

	errLog, err := os.OpenFile(errPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{Status: 1, Duration: time.Since(start), Err: fmt.Errorf("%w: %s: %v", ErrStreamOpen, errPath, err)}
	}
	defer errLog.Close()

	r := &runner[S, MS, D]{spec: spec, out: out, err: errLog}
	status, steps, runErr := r.run(ctx)

	duration := time.Since(start)

	observer := spec.Observer
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	eventData := map[string]any{
		"batch":            spec.Batch,
		"replica":          spec.Replica,
		"steps":            steps,
		"duration_seconds": duration.Seconds(),
	}
	if status != 0 {
		eventData["outcome"] = "failed"
		if runErr != nil {
			eventData["error"] = runErr.Error()
		}
	} else {
		eventData["outcome"] = "ok"
	}
	observer.OnEvent(ctx, observability.Event{
		Type:      observability.EventTaskComplete,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "task.Run",
		Data:      eventData,
	})

	return Result{Status: status, Steps: steps, Duration: duration, Err: runErr}
}

// runner holds the mutable per-invocation state the step loop threads
// through; it is never retained beyond one Run call.
type runner[S, MS, D any] struct {
	spec Spec[S, MS, D]
	out  *os.File
	err  *os.File
}

func (r *runner[S, MS, D]) logf(w *os.File, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}

func (r *runner[S, MS, D]) run(ctx context.Context) (status int, steps int, err error) {
	spec := r.spec
	stepCtx := model.StepContext{RunID: spec.RunID, Batch: spec.Batch, Replica: spec.Replica}

	observer := spec.Observer
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	observer.OnEvent(ctx, observability.Event{
		Type:      observability.EventTaskStart,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "task.Run",
		Data:      map[string]any{"batch": spec.Batch, "replica": spec.Replica, "continue": spec.Continue},
	})

	currentState, modelState := r.initialize(ctx, observer)

	var trajectory [][]byte
	syncCadence := spec.Sync + 1
	backupCadence := syncCadence * (spec.Backup + 1)

	statusPath := filepath.Join(spec.Dir, fileStatus)
	statusCopyPath := filepath.Join(spec.Dir, fileStatusCopy)
	mstatusPath := filepath.Join(spec.Dir, fileMStatus)
	mstatusCopyPath := filepath.Join(spec.Dir, fileMStatusCopy)
	tracePath := filepath.Join(spec.Dir, fileTrace)
	traceCopyPath := filepath.Join(spec.Dir, fileTraceCopy)

	for step := 0; !spec.Terminate(currentState, step); step++ {
		if step != 0 && step%backupCadence == 0 {
			if err := r.backupBoundary(statusPath, statusCopyPath, mstatusPath, mstatusCopyPath, traceCopyPath, &trajectory, backupCadence); err != nil {
				r.logf(r.err, "Error: backup boundary at step %d: %v", step, err)
				return 1, step, fmt.Errorf("%w: %v", ErrTaskFailed, err)
			}
			observer.OnEvent(ctx, observability.Event{
				Type:      observability.EventTaskBackup,
				Level:     observability.LevelVerbose,
				Timestamp: time.Now(),
				Source:    "task.Run",
				Data:      map[string]any{"batch": spec.Batch, "replica": spec.Replica, "step": step},
			})
		}

		if step%syncCadence == 0 {
			if err := r.syncBoundary(currentState, modelState, statusPath, mstatusPath, tracePath, &trajectory, step, syncCadence); err != nil {
				r.logf(r.err, "Error: sync boundary at step %d: %v", step, err)
				return 1, step, fmt.Errorf("%w: %v", ErrTaskFailed, err)
			}
			observer.OnEvent(ctx, observability.Event{
				Type:      observability.EventTaskSync,
				Level:     observability.LevelVerbose,
				Timestamp: time.Now(),
				Source:    "task.Run",
				Data:      map[string]any{"batch": spec.Batch, "replica": spec.Replica, "step": step},
			})
		}

		stepCtx.Step = step

		if spec.Model.Differential {
			delta, stepErr := spec.Model.Step(currentState, &modelState, stepCtx)
			if stepErr != nil {
				r.logf(r.err, "Error: model step %d: %v", step, stepErr)
				return 1, step, fmt.Errorf("%w: %v", ErrTaskFailed, stepErr)
			}
			currentState = spec.Model.Combine(currentState, delta)
			if spec.SaveTrace {
				rec, encErr := json.Marshal(delta)
				if encErr != nil {
					r.logf(r.err, "Error: encode delta at step %d: %v", step, encErr)
					return 1, step, fmt.Errorf("%w: %v", ErrTaskFailed, encErr)
				}
				trajectory = append(trajectory, rec)
			}
		} else {
			newState, stepErr := spec.Model.Step(currentState, &modelState, stepCtx)
			if stepErr != nil {
				r.logf(r.err, "Error: model step %d: %v", step, stepErr)
				return 1, step, fmt.Errorf("%w: %v", ErrTaskFailed, stepErr)
			}
			var next S
			if asS, ok := any(newState).(S); ok {
				next = asS
			}
			if spec.SaveTrace {
				delta := spec.Model.Difference(next, currentState)
				rec, encErr := json.Marshal(delta)
				if encErr != nil {
					r.logf(r.err, "Error: encode delta at step %d: %v", step, encErr)
					return 1, step, fmt.Errorf("%w: %v", ErrTaskFailed, encErr)
				}
				trajectory = append(trajectory, rec)
			}
			currentState = next
		}

		if spec.EventCallback != nil {
			if err := spec.EventCallback(ctx, stepCtx); err != nil {
				r.logf(r.err, "Error: event callback at step %d: %v", step, err)
				return 1, step, fmt.Errorf("%w: %v", ErrTaskFailed, err)
			}
		}

		steps = step + 1
	}

	if err := r.flush(currentState, modelState, statusPath, mstatusPath, tracePath, statusCopyPath, mstatusCopyPath, traceCopyPath, &trajectory); err != nil {
		r.logf(r.err, "Error: termination flush: %v", err)
		return 1, steps, fmt.Errorf("%w: %v", ErrTaskFailed, err)
	}

	if spec.InstanceCallback != nil {
		if err := spec.InstanceCallback(ctx, stepCtx); err != nil {
			r.logf(r.err, "Error: instance callback: %v", err)
			return 1, steps, fmt.Errorf("%w: %v", ErrTaskFailed, err)
		}
	}
	if spec.Replica == 0 && spec.BatchCallback != nil {
		if err := spec.BatchCallback(ctx, stepCtx); err != nil {
			r.logf(r.err, "Error: batch callback: %v", err)
			return 1, steps, fmt.Errorf("%w: %v", ErrTaskFailed, err)
		}
	}

	return 0, steps, nil
}

// initialize implements SPEC_FULL.md §4.2 step 2: recovery from .copy files
// when Continue is set, falling back to the batch's initial state (and a
// default ModelState) on any recovery failure, logged as a warning — never
// a fatal error.
func (r *runner[S, MS, D]) initialize(ctx context.Context, observer observability.Observer) (S, MS) {
	spec := r.spec

	if !spec.Continue {
		var ms MS
		return spec.InitialState, ms
	}

	statusCopyPath := filepath.Join(spec.Dir, fileStatusCopy)
	data, err := readFile(statusCopyPath)
	if err != nil {
		r.logf(r.err, "Warning: recovery failed reading %s: %v", statusCopyPath, err)
		observer.OnEvent(ctx, observability.Event{
			Type:      observability.EventTaskRecoverFail,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "task.Run",
			Data:      map[string]any{"batch": spec.Batch, "replica": spec.Replica, "error": err.Error()},
		})
		var ms MS
		return spec.InitialState, ms
	}

	var state S
	if err := json.Unmarshal(data, &state); err != nil {
		r.logf(r.err, "Warning: recovery failed decoding %s: %v", statusCopyPath, err)
		var ms MS
		return spec.InitialState, ms
	}

	var modelState MS
	if spec.Model.Recoverable && spec.SaveModelState {
		mstatusCopyPath := filepath.Join(spec.Dir, fileMStatusCopy)
		mdata, err := readFile(mstatusCopyPath)
		if err != nil {
			r.logf(r.err, "Warning: recovery failed reading %s: %v", mstatusCopyPath, err)
			var zero MS
			return spec.InitialState, zero
		}
		if err := json.Unmarshal(mdata, &modelState); err != nil {
			r.logf(r.err, "Warning: recovery failed decoding %s: %v", mstatusCopyPath, err)
			var zero MS
			return spec.InitialState, zero
		}
	}

	return state, modelState
}

func (r *runner[S, MS, D]) syncBoundary(state S, modelState MS, statusPath, mstatusPath, tracePath string, trajectory *[][]byte, step, syncCadence int) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := writeAtomic(statusPath, data); err != nil {
		return err
	}

	if r.spec.SaveModelState {
		mdata, err := json.Marshal(modelState)
		if err != nil {
			return err
		}
		if err := writeAtomic(mstatusPath, mdata); err != nil {
			return err
		}
	}

	if step != 0 && r.spec.SaveTrace {
		tail := tailRecords(*trajectory, syncCadence)
		if err := appendRecords(tracePath, tail); err != nil {
			return err
		}
	}

	return nil
}

func (r *runner[S, MS, D]) backupBoundary(statusPath, statusCopyPath, mstatusPath, mstatusCopyPath, traceCopyPath string, trajectory *[][]byte, backupCadence int) error {
	if err := copyFile(statusPath, statusCopyPath); err != nil {
		return err
	}
	if r.spec.SaveModelState {
		if err := copyFile(mstatusPath, mstatusCopyPath); err != nil {
			return err
		}
	}

	if r.spec.SaveTrace {
		tail := tailRecords(*trajectory, backupCadence)
		if err := appendRecords(traceCopyPath, tail); err != nil {
			return err
		}
		*trajectory = nil
	}

	return nil
}

// flush implements SPEC_FULL.md §4.2 step 4: the unconditional final
// write, trace append, and .copy refresh after the step loop exits.
func (r *runner[S, MS, D]) flush(state S, modelState MS, statusPath, mstatusPath, tracePath, statusCopyPath, mstatusCopyPath, traceCopyPath string, trajectory *[][]byte) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := writeAtomic(statusPath, data); err != nil {
		return err
	}

	if r.spec.SaveModelState {
		mdata, err := json.Marshal(modelState)
		if err != nil {
			return err
		}
		if err := writeAtomic(mstatusPath, mdata); err != nil {
			return err
		}
	}

	if r.spec.SaveTrace && len(*trajectory) > 0 {
		if err := appendRecords(tracePath, *trajectory); err != nil {
			return err
		}
	}

	if err := copyFile(statusPath, statusCopyPath); err != nil {
		return err
	}
	if r.spec.SaveModelState {
		if err := copyFile(mstatusPath, mstatusCopyPath); err != nil {
			return err
		}
	}
	if r.spec.SaveTrace {
		if err := appendRecords(traceCopyPath, *trajectory); err != nil {
			return err
		}
		*trajectory = nil
	}

	return nil
}

// tailRecords returns the last n records of trajectory (or all of them if
// fewer than n are present), matching "append the tail N trajectory
// records" in SPEC_FULL.md §4.2.
func tailRecords(trajectory [][]byte, n int) [][]byte {
	if len(trajectory) <= n {
		return trajectory
	}
	return trajectory[len(trajectory)-n:]
}
