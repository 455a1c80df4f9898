package engine

import "errors"

var (
	ErrWorkspaceCreate = errors.New("engine: failed to create workspace directory")
	ErrModelDecode     = errors.New("engine: failed to decode model document")
	ErrObserverUnknown = errors.New("engine: unknown observer name")
)
