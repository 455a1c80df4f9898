// Package pool implements the bounded worker pool (SPEC_FULL.md §4.4, C4):
// a coordinator goroutine that drains a lazy task enumerator while keeping
// no more than parallelMax closures running concurrently, grounded on
// original_source/headers/workers-queue.h's workers_queue<T>::operator().
//
// The coordinator/mutex/condition-variable discipline is kept deliberately
// close to that source file rather than rebuilt atop the channel-based
// shape of orchestrate/workflows/parallel.go, because SPEC_FULL.md §4.4's
// "Loop" and "Shared resources" paragraphs describe exactly this
// coordinator-owns-a-condvar scheduling discipline. What is adapted from
// orchestrate/workflows/parallel.go is the surrounding idiom: observability
// events emitted at the same points it emits them
// (EventWorkerStart/EventWorkerDone), and context.Context
// threaded through for the ambient CLI shutdown path (SPEC_FULL.md §5).
package pool

import (
	"context"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/karurochori/simkernel/observability"
)

// TaskFunc is a runnable closure produced by the task enumerator (C3): it
// constructs and runs a task, returning its status (0 success, 1 failure).
// A panic inside TaskFunc is recovered and counted as a failure with no
// payload, matching the source's caught-but-undetailed exception flag.
type TaskFunc func(ctx context.Context) int

// Enumerator is the lazy, pull-based sequence of TaskFunc values the pool
// drains, mirroring original_source/headers/simulator_t.h's const_iterator.
// It is satisfied by the range-over-func iterators package batch produces.
type Enumerator = iter.Seq[TaskFunc]

// Config controls pool behavior. Out and Err receive coordinator-level
// status lines ("Started", "Completed", "Exception"), distinct from each
// task's own per-task .out/.err log files.
type Config struct {
	ParallelMax int
	Out         io.Writer
	Err         io.Writer
	Observer    observability.Observer
	Verbose     bool
}

type entry struct {
	start     time.Time
	duration  time.Duration
	status    int
	exception bool
}

type pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	active  int
	nextID  int
	book    map[int]*entry
	pending []int
}

// Run drains tasks, keeping at most cfg.ParallelMax closures running
// concurrently, and returns the total count of failed tasks (0 meaning all
// succeeded) — SPEC_FULL.md §4.4 "Return value".
func Run(ctx context.Context, cfg Config, tasks Enumerator) int {
	parallelMax := cfg.ParallelMax
	if parallelMax <= 0 {
		parallelMax = 1
	}

	observer := cfg.Observer
	if observer == nil {
		observer = observability.NoOpObserver{}
	}

	p := &pool{book: make(map[int]*entry)}
	p.cond = sync.NewCond(&p.mu)

	next, stop := iter.Pull(tasks)
	defer stop()

	failures := 0
	exhausted := false

	p.mu.Lock()
	for {
		for !exhausted && p.active < parallelMax {
			fn, ok := next()
			if !ok {
				exhausted = true
				break
			}

			id := p.nextID
			p.nextID++
			p.book[id] = &entry{start: time.Now()}
			p.active++

			if cfg.Verbose {
				fmt.Fprintf(cfg.Out, "Started %d\n", id)
			}
			observer.OnEvent(ctx, observability.Event{
				Type:      observability.EventWorkerStart,
				Level:     observability.LevelVerbose,
				Timestamp: time.Now(),
				Source:    "pool.Run",
				Data:      map[string]any{"id": id},
			})

			go p.runWorker(ctx, id, fn)
		}

		if exhausted && p.active == 0 {
			break
		}

		for len(p.pending) == 0 {
			p.cond.Wait()
		}

		pending := p.pending
		p.pending = nil

		for _, id := range pending {
			e := p.book[id]
			p.active--

			if e.exception || e.status != 0 {
				failures++
				if cfg.Err != nil {
					fmt.Fprintf(cfg.Err, "Exception in task %d\n", id)
				}
			} else if cfg.Verbose && cfg.Out != nil {
				fmt.Fprintf(cfg.Out, "Completed %d in %s. Returned %d\n", id, e.duration, e.status)
			}

			observer.OnEvent(ctx, observability.Event{
				Type:      observability.EventWorkerDone,
				Level:     observability.LevelVerbose,
				Timestamp: time.Now(),
				Source:    "pool.Run",
				Data: map[string]any{
					"id":            id,
					"status":        e.status,
					"exception":     e.exception,
					"duration_secs": e.duration.Seconds(),
				},
			})

			delete(p.book, id)
		}
	}
	p.mu.Unlock()

	if cfg.Verbose && failures > 0 && cfg.Out != nil {
		fmt.Fprintf(cfg.Out, "%d tasks failed\n", failures)
	}

	return failures
}

func (p *pool) runWorker(ctx context.Context, id int, fn TaskFunc) {
	var status int
	var exception bool

	func() {
		defer func() {
			if r := recover(); r != nil {
				exception = true
			}
		}()
		status = fn(ctx)
	}()

	duration := time.Since(p.entryStart(id))

	p.mu.Lock()
	e := p.book[id]
	e.status = status
	e.exception = exception
	e.duration = duration
	p.pending = append(p.pending, id)
	p.mu.Unlock()

	p.cond.Signal()
}

func (p *pool) entryStart(id int) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book[id].start
}
