package task

import "errors"

// Sentinel errors for the task runner, one per failure category
// (mirroring kernel/errors.go, memory/errors.go).
var (
	// ErrStreamOpen is returned when the .out or .err append-mode log
	// stream for a task directory cannot be opened.
	ErrStreamOpen = errors.New("task: failed to open log stream")

	// ErrTaskFailed is the sentinel wrapped by any error that aborts a
	// task's step loop or termination flush.
	ErrTaskFailed = errors.New("task: step loop failed")
)
