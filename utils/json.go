package utils

import (
	"encoding/json"
	"fmt"
)

// MergePatch overlays patch (keyed by json field name) on top of current and decodes the result into a new T.
// Nested objects are replaced, not merged.
func MergePatch[T any](current T, patch map[string]any) (T, error) {
	var merged T
	raw, err := json.Marshal(current)
	if err != nil {
		return merged, err
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return merged, err
	}
	for k, v := range patch {
		fields[k] = v
	}
	raw, err = json.Marshal(fields)
	if err != nil {
		return merged, err
	}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return merged, fmt.Errorf("apply patch: %w", err)
	}
	return merged, nil
}
