package config

import (
	"encoding/json"
	"fmt"
)

// mergePatch applies an RFC 7396 JSON Merge Patch: patch fields with a
// null value delete the corresponding target field, object-valued fields
// merge recursively, and any other value replaces the target outright.
//
// No corpus example wires a merge-patch library (the only trace of one in
// the retrieved dependency surface is an unused go.mod entry with no
// importing file), so this is a direct, from-scratch implementation of the
// four-case recursive algorithm the RFC itself gives in pseudocode — see
// DESIGN.md for the standard-library justification.
func mergePatch(target, patch json.RawMessage) (json.RawMessage, error) {
	var patchValue any
	if err := json.Unmarshal(patch, &patchValue); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPatchMerge, err)
	}

	patchObj, ok := patchValue.(map[string]any)
	if !ok {
		// A non-object patch replaces the target wholesale (RFC 7396 §2).
		return patch, nil
	}

	var targetValue any
	if len(target) > 0 {
		if err := json.Unmarshal(target, &targetValue); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPatchMerge, err)
		}
	}
	targetObj, ok := targetValue.(map[string]any)
	if !ok {
		targetObj = map[string]any{}
	}

	merged := mergeObjects(targetObj, patchObj)

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPatchMerge, err)
	}
	return out, nil
}

func mergeObjects(target, patch map[string]any) map[string]any {
	out := make(map[string]any, len(target))
	for k, v := range target {
		out[k] = v
	}

	for k, patchVal := range patch {
		if patchVal == nil {
			delete(out, k)
			continue
		}

		patchSub, patchIsObj := patchVal.(map[string]any)
		targetSub, targetIsObj := out[k].(map[string]any)
		if patchIsObj && targetIsObj {
			out[k] = mergeObjects(targetSub, patchSub)
		} else if patchIsObj {
			out[k] = mergeObjects(map[string]any{}, patchSub)
		} else {
			out[k] = patchVal
		}
	}
	return out
}

// applyPatches folds a sequence of merge patches onto a base document in
// order, matching SPEC_FULL.md §4.5's "right-biased deep merge" — later
// patches win over earlier ones and over the base.
func applyPatches(base json.RawMessage, patches []json.RawMessage) (json.RawMessage, error) {
	current := base
	for i, patch := range patches {
		merged, err := mergePatch(current, patch)
		if err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		current = merged
	}
	return current, nil
}
