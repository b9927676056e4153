// Package normalize maps heterogeneous raw records into the canonical
// record schema: trimming, placeholder removal, list projection, numeric
// coercion and identity resolution, driven by declarative field maps.
package normalize

import (
	"strconv"
	"strings"
)

// Scalar trims a raw scalar and converts empty strings and the literal
// placeholder NULL to absence. Non-string scalars pass through.
func Scalar(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || strings.EqualFold(trimmed, "NULL") {
			return nil, false
		}
		return trimmed, true
	default:
		return v, true
	}
}

// Value normalises a raw value. List values are filtered of absent
// elements; keepList retains the surviving sequence, otherwise the
// first surviving element is taken, since most upstream detail fields
// are single-valued despite being wrapped in arrays.
func Value(value any, keepList bool) (any, bool) {
	items, isList := value.([]any)
	if !isList {
		return Scalar(value)
	}
	var kept []any
	for _, item := range items {
		if v, ok := Scalar(item); ok {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return nil, false
	}
	if keepList {
		return kept, true
	}
	return kept[0], true
}

// Int coerces a value to an integer after removing thousands separators
// and surrounding whitespace. Floats are truncated. Anything else is
// dropped rather than raised.
func Int(value any) (int64, bool) {
	v, ok := Value(value, false)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(cleanNumber(n), 64)
		if err != nil {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

// Float coerces a value to a float with the same cleaning rules as Int.
func Float(value any) (float64, bool) {
	v, ok := Value(value, false)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(cleanNumber(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// String coerces a value to a non-empty string, projecting lists to
// their first surviving element.
func String(value any) (string, bool) {
	v, ok := Value(value, false)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

func cleanNumber(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
}
