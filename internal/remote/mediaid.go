package remote

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
)

// idKeys are the direct identifier fields probed on each object, in order.
var idKeys = []string{"id", "pk", "uuid", "media_id"}

// ExtractMediaID resolves the created identifier from a variably-shaped upload
// response. Shapes are tried in order: a direct id-like field, a nested
// "media" object, a nested "result" object, then the first element of a
// "results" array, recursing into each. A visited set keyed by object
// identity guarantees termination on self-referential payloads. The second
// return is false when no identifier could be resolved.
func ExtractMediaID(payload any) (string, bool) {
	return extractID(payload, make(map[uintptr]bool))
}

func extractID(v any, seen map[uintptr]bool) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}

	ptr := reflect.ValueOf(obj).Pointer()
	if seen[ptr] {
		return "", false
	}
	seen[ptr] = true

	for _, key := range idKeys {
		if raw, ok := obj[key]; ok {
			if s, ok := idString(raw); ok {
				return s, true
			}
		}
	}

	if nested, ok := obj["media"]; ok {
		if s, ok := extractID(nested, seen); ok {
			return s, true
		}
	}
	if nested, ok := obj["result"]; ok {
		if s, ok := extractID(nested, seen); ok {
			return s, true
		}
	}
	if list, ok := obj["results"].([]any); ok && len(list) > 0 {
		if s, ok := extractID(list[0], seen); ok {
			return s, true
		}
	}

	return "", false
}

// idString renders a scalar identifier as a string. Whole-number floats (the
// default JSON number decoding) render without a fractional part.
func idString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case json.Number:
		return t.String(), true
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}
