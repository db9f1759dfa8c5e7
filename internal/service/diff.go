package service

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"cmssync/internal/model"
)

// CalculateDiff compares two payloads field by field. Nested objects are
// descended into so that changes carry dotted paths such as "title.ar"; any
// other value, arrays included, counts as changed iff its JSON encoding differs.
// A key present on one side only is reported with a nil value on the other.
func CalculateDiff(previous, current map[string]any, at time.Time) []model.Change {
	changes := make([]model.Change, 0)
	diffInto(&changes, "", previous, current, at)
	return changes
}

func diffInto(out *[]model.Change, prefix string, prev, curr map[string]any, at time.Time) {
	for _, k := range unionKeys(prev, curr) {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		pv, pok := prev[k]
		cv, cok := curr[k]

		pm, pIsMap := pv.(map[string]any)
		cm, cIsMap := cv.(map[string]any)
		if pIsMap && cIsMap {
			diffInto(out, path, pm, cm, at)
			continue
		}
		if pok && cok && sameJSON(pv, cv) {
			continue
		}
		*out = append(*out, model.Change{Field: path, OldValue: pv, NewValue: cv, Timestamp: at})
	}
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
