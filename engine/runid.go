package engine

import "github.com/google/uuid"

// generateRunID produces a fresh identifier for one engine invocation. It is
// stamped into the engine's start and complete events and carried in every
// callback's StepContext.RunID; task and pool events and otel spans do not
// carry it.
func generateRunID() string {
	return uuid.NewString()
}
