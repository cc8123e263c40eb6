package props

import (
	"strconv"
	"time"
)

// The helpers below read decoded JSON values leniently, falling back to the
// zero value when the stored shape is not the expected one.

func AsBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func AsInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}

func AsString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func AsStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// AsMillis reads a millisecond count as a duration.
func AsMillis(v any) time.Duration {
	return time.Duration(AsInt64(v)) * time.Millisecond
}
