package config

import "errors"

var (
	// ErrInvalidDocument means the top-level input, or one entry of the
	// tasks object, was not a JSON object.
	ErrInvalidDocument = errors.New("config: invalid document")

	// ErrMissingField means a required field was absent.
	ErrMissingField = errors.New("config: missing required field")

	// ErrTypeMismatch means a field was present but failed to decode into
	// its expected type, and the type-mismatch policy (SPEC_FULL.md §4.5)
	// treats the occurrence as fatal: either the field is required, or
	// throw-wrong-type is set.
	ErrTypeMismatch = errors.New("config: field type mismatch")

	// ErrPatchMerge means a patch document in the patches array failed to
	// apply as an RFC 7396 JSON Merge Patch.
	ErrPatchMerge = errors.New("config: patch merge failed")
)
