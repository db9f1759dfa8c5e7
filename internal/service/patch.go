package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"cmssync/internal/model"
)

// clonePayload deep-copies a payload through JSON so that numbers and nested
// values have the same shapes they would have after a round trip to storage.
func clonePayload(p map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if p == nil {
		return out, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MergePatch applies patch to a copy of target with JSON merge patch rules:
// objects merge recursively, null removes a key, anything else replaces.
func MergePatch(target, patch map[string]any) (map[string]any, error) {
	out, err := clonePayload(target)
	if err != nil {
		return nil, err
	}
	p, err := clonePayload(patch)
	if err != nil {
		return nil, err
	}
	mergeInto(out, p)
	return out, nil
}

func mergeInto(dst, patch map[string]any) {
	for k, v := range patch {
		if v == nil {
			delete(dst, k)
			continue
		}
		pm, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		dm, ok := dst[k].(map[string]any)
		if !ok {
			dm = map[string]any{}
			dst[k] = dm
		}
		mergeInto(dm, pm)
	}
}

// ApplyChanges sets each change's NewValue at its dotted field path on a copy
// of payload. A nil NewValue removes the field. Intermediate objects are
// created as needed; a path running through a non-object value is an error.
func ApplyChanges(payload map[string]any, changes []model.Change) (map[string]any, error) {
	out, err := clonePayload(payload)
	if err != nil {
		return nil, err
	}
	for _, c := range changes {
		if c.Field == "" {
			return nil, &ValidationError{Problems: []string{"change without field"}}
		}
		value, err := normalize(c.NewValue)
		if err != nil {
			return nil, err
		}
		if err := setPath(out, strings.Split(c.Field, "."), value); err != nil {
			return nil, &ValidationError{Problems: []string{err.Error()}}
		}
	}
	return out, nil
}

func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(raw, &out)
	return out, err
}

func setPath(m map[string]any, path []string, value any) error {
	for i, seg := range path[:len(path)-1] {
		next, ok := m[seg]
		if !ok || next == nil {
			if value == nil {
				return nil
			}
			child := map[string]any{}
			m[seg] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("field %q is not an object", strings.Join(path[:i+1], "."))
		}
		m = child
	}
	last := path[len(path)-1]
	if value == nil {
		delete(m, last)
		return nil
	}
	m[last] = value
	return nil
}
