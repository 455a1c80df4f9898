package observability

// EventType constants for the simulation harness. Each names a lifecycle
// point in the engine orchestrator (C5), worker pool (C4), or task runner
// (C2), following the dotted-path naming convention the rest of this
// package's events already use (e.g. "kernel.run.start" in the surveyed
// test file).
const (
	EventEngineStart    EventType = "engine.run.start"
	EventEngineComplete EventType = "engine.run.complete"

	EventPoolStart    EventType = "pool.run.start"
	EventPoolComplete EventType = "pool.run.complete"
	EventWorkerStart  EventType = "pool.worker.start"
	EventWorkerDone   EventType = "pool.worker.complete"

	EventTaskStart       EventType = "task.start"
	EventTaskSync        EventType = "task.sync"
	EventTaskBackup      EventType = "task.backup"
	EventTaskRecoverFail EventType = "task.recover.fail"
	EventTaskComplete    EventType = "task.complete"
)
