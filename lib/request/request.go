// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"fmt"
	"sort"
)

// ActionKey is the field every request must carry.
const ActionKey = "action"

// Request is a decoded admin request. Values are JSON/YAML-compatible:
// string, bool, int, float64, []any, map[string]any, or nil.
type Request map[string]any

// Action returns the request's action name, or "" if the field is
// missing or not a string.
func (r Request) Action() string {
	action, _ := r[ActionKey].(string)
	return action
}

// IsEmpty reports whether the request carries no fields. A nil or empty
// residual means the handler discharged the whole request.
func (r Request) IsEmpty() bool {
	return len(r) == 0
}

// Keys returns the request's field names in sorted order.
func (r Request) Keys() []string {
	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether the field is present.
func (r Request) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Clone returns a deep copy of the request. Nested mappings and lists
// are copied so the clone shares no mutable state with the original.
func (r Request) Clone() Request {
	if r == nil {
		return nil
	}
	return cloneValue(map[string]any(r)).(map[string]any)
}

// With returns a deep copy of the request with key set to value. The
// receiver is not modified.
func (r Request) With(key string, value any) Request {
	clone := r.Clone()
	if clone == nil {
		clone = Request{}
	}
	clone[key] = cloneValue(value)
	return clone
}

// String returns a required string field.
func (r Request) String(key string) (string, error) {
	value, ok := r[key]
	if !ok {
		return "", fmt.Errorf("missing required field %q", key)
	}
	text, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("field %q must be a string, got %s", key, typeName(value))
	}
	return text, nil
}

// OptionalString returns a string field, or fallback when absent or null.
func (r Request) OptionalString(key, fallback string) (string, error) {
	value, ok := r[key]
	if !ok || value == nil {
		return fallback, nil
	}
	text, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("field %q must be a string, got %s", key, typeName(value))
	}
	return text, nil
}

// Bool returns a boolean field, or fallback when absent or null.
func (r Request) Bool(key string, fallback bool) (bool, error) {
	value, ok := r[key]
	if !ok || value == nil {
		return fallback, nil
	}
	flag, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("field %q must be a boolean, got %s", key, typeName(value))
	}
	return flag, nil
}

// Int returns an integer field. JSON numbers decode as float64, so
// integral floats are accepted. ok is false when the field is absent
// or null.
func (r Request) Int(key string) (value int, ok bool, err error) {
	raw, present := r[key]
	if !present || raw == nil {
		return 0, false, nil
	}
	switch number := raw.(type) {
	case int:
		return number, true, nil
	case int64:
		return int(number), true, nil
	case uint64:
		return int(number), true, nil
	case float64:
		if number != float64(int(number)) {
			return 0, false, fmt.Errorf("field %q must be an integer, got %v", key, number)
		}
		return int(number), true, nil
	default:
		return 0, false, fmt.Errorf("field %q must be an integer, got %s", key, typeName(raw))
	}
}

// Strings returns a required list-of-strings field. An empty list is
// an error: a request with nothing to act on is malformed.
func (r Request) Strings(key string) ([]string, error) {
	value, ok := r[key]
	if !ok {
		return nil, fmt.Errorf("missing required field %q", key)
	}
	list, err := stringList(key, value)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("field %q must not be empty", key)
	}
	return list, nil
}

// OptionalStrings returns a list-of-strings field, or nil when absent
// or null.
func (r Request) OptionalStrings(key string) ([]string, error) {
	value, ok := r[key]
	if !ok || value == nil {
		return nil, nil
	}
	return stringList(key, value)
}

// Mapping returns a required mapping field.
func (r Request) Mapping(key string) (map[string]any, error) {
	value, ok := r[key]
	if !ok {
		return nil, fmt.Errorf("missing required field %q", key)
	}
	mapping, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field %q must be a mapping, got %s", key, typeName(value))
	}
	if len(mapping) == 0 {
		return nil, fmt.Errorf("field %q must not be empty", key)
	}
	return mapping, nil
}

// Mappings returns a required list-of-mappings field.
func (r Request) Mappings(key string) ([]map[string]any, error) {
	value, ok := r[key]
	if !ok {
		return nil, fmt.Errorf("missing required field %q", key)
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q must be a list, got %s", key, typeName(value))
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("field %q must not be empty", key)
	}
	mappings := make([]map[string]any, 0, len(list))
	for index, item := range list {
		mapping, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q[%d] must be a mapping, got %s", key, index, typeName(item))
		}
		mappings = append(mappings, mapping)
	}
	return mappings, nil
}

// StringsAsAny converts a string slice to the []any representation
// used inside a Request, so residuals encode identically to decoded
// files.
func StringsAsAny(values []string) []any {
	list := make([]any, len(values))
	for i, value := range values {
		list[i] = value
	}
	return list
}

// MappingsAsAny converts a mapping slice to []any.
func MappingsAsAny(values []map[string]any) []any {
	list := make([]any, len(values))
	for i, value := range values {
		list[i] = value
	}
	return list
}

func stringList(key string, value any) ([]string, error) {
	switch list := value.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		result := make([]string, 0, len(list))
		for index, item := range list {
			text, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("field %q[%d] must be a string, got %s", key, index, typeName(item))
			}
			result = append(result, text)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("field %q must be a list of strings, got %s", key, typeName(value))
	}
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for key, item := range typed {
			clone[key] = cloneValue(item)
		}
		return clone
	case Request:
		return cloneValue(map[string]any(typed))
	case []any:
		clone := make([]any, len(typed))
		for i, item := range typed {
			clone[i] = cloneValue(item)
		}
		return clone
	case []string:
		return StringsAsAny(typed)
	case []map[string]any:
		clone := make([]any, len(typed))
		for i, item := range typed {
			clone[i] = cloneValue(item)
		}
		return clone
	default:
		return value
	}
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, uint64, float64:
		return "number"
	case []any, []string:
		return "list"
	case map[string]any:
		return "mapping"
	default:
		return fmt.Sprintf("%T", value)
	}
}
