// Package task encodes and decodes fairy task records.
//
// A task is not a tagged struct: it's a JSON array whose first element is
// the group id and whose trailing elements carry whatever metadata the
// enclosing list needs (enqueue time, start time, failure reasons, ...).
// The shape is deliberately dynamic so a queue never has to know the
// argument layout of the tasks flowing through it.
package task

import (
	"encoding/json"
	"fmt"
)

// Encode marshals args followed by tail as a single flat JSON array, e.g.
// Encode([]interface{}{"group-1", 42}, now) -> `["group-1",42,1690000000000]`.
func Encode(args []interface{}, tail ...interface{}) (string, error) {
	arr := make([]interface{}, 0, len(args)+len(tail))
	arr = append(arr, args...)
	arr = append(arr, tail...)
	raw, err := json.Marshal(arr)
	if err != nil {
		return "", fmt.Errorf("task: encode: %w", err)
	}
	return string(raw), nil
}

// Decode parses a flat JSON array back into its elements. Callers know how
// many trailing elements are metadata for the list they read from and slice
// accordingly.
func Decode(raw string) ([]interface{}, error) {
	var arr []interface{}
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return nil, fmt.Errorf("task: decode: %w", err)
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("task: decode: empty array")
	}
	return arr, nil
}

// Split separates a decoded array into the leading args and the last n
// elements (the metadata tail). It panics if arr is shorter than n, which
// would indicate a corrupt record, not a recoverable condition.
func Split(arr []interface{}, n int) (args []interface{}, tail []interface{}) {
	if len(arr) < n {
		panic(fmt.Sprintf("task: split: array of length %d shorter than tail %d", len(arr), n))
	}
	cut := len(arr) - n
	return arr[:cut], arr[cut:]
}

// GroupKey stringifies args[0], the group id, for use in Redis key
// derivation and BLOCKED set membership. Group ids are never JSON
// round-tripped on their own — only ever interpolated as strings.
func GroupKey(args []interface{}) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("task: group key: empty args")
	}
	return fmt.Sprintf("%v", args[0]), nil
}

// AsInt64 coerces a decoded JSON number (always float64 via encoding/json)
// into an int64 millisecond timestamp.
func AsInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("task: expected numeric timestamp, got %T", v)
	}
}

// AsStringSlice coerces a decoded JSON array element into []string, used for
// the FAILED record's error list.
func AsStringSlice(v interface{}) ([]string, error) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("task: expected array, got %T", v)
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("task: expected string element, got %T", e)
		}
		out = append(out, s)
	}
	return out, nil
}
