package domain

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// ignoredFields never count as a change on their own.
var ignoredFields = map[string]struct{}{
	"updated_at": {},
}

var secretMarkers = []string{"password", "token", "secret", "api_key"}

// Snapshot converts an entity into its JSON object form. Numbers stay
// json.Number, matching what a stored JSON column scans back into.
func Snapshot(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	out := map[string]any{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sanitize returns a copy of obj without secret or internal keys, applied to
// nested objects as well.
func Sanitize(obj map[string]any) map[string]any {
	if obj == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(obj))
	for key, value := range obj {
		if isHiddenKey(key) {
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[key] = Sanitize(nested)
			continue
		}
		out[key] = value
	}
	return out
}

func isHiddenKey(key string) bool {
	if strings.HasPrefix(key, "_") {
		return true
	}
	lower := strings.ToLower(key)
	for _, marker := range secretMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Diff returns the sorted top-level keys whose values differ. Nested objects
// are compared one level deep: the parent key is reported when any child differs.
func Diff(before, after map[string]any) []string {
	keys := map[string]struct{}{}
	for key := range before {
		keys[key] = struct{}{}
	}
	for key := range after {
		keys[key] = struct{}{}
	}

	changed := make([]string, 0)
	for key := range keys {
		if _, skip := ignoredFields[key]; skip {
			continue
		}
		if fieldChanged(before[key], after[key]) {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}

func fieldChanged(before, after any) bool {
	bm, bok := before.(map[string]any)
	am, aok := after.(map[string]any)
	if !bok || !aok {
		return !reflect.DeepEqual(before, after)
	}

	if len(bm) != len(am) {
		return true
	}
	for key, value := range bm {
		other, ok := am[key]
		if !ok || !reflect.DeepEqual(value, other) {
			return true
		}
	}
	return false
}
