// Package layering merges decoded configuration sources ordered from
// strongest to weakest. Nested maps merge key by key; any other value from a
// stronger layer replaces the weaker one outright.
package layering

// MergeMaps composes layers ordered strongest first and returns a new map.
// Inputs are never mutated and the result shares no maps or slices with them.
func MergeMaps(layers ...map[string]any) map[string]any {
	merged := map[string]any{}
	for i := len(layers) - 1; i >= 0; i-- {
		merged = mergeInto(merged, layers[i])
	}
	return merged
}

// Clone returns a deep copy of value, descending into maps and slices.
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		if typed == nil {
			return map[string]any(nil)
		}
		out := make(map[string]any, len(typed))
		for key, v := range typed {
			out[key] = Clone(v)
		}
		return out
	case []any:
		if typed == nil {
			return []any(nil)
		}
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = Clone(typed[i])
		}
		return out
	default:
		return value
	}
}

// mergeInto overlays strong onto weak. weak is owned by the caller and may
// be modified in place.
func mergeInto(weak, strong map[string]any) map[string]any {
	if weak == nil {
		weak = map[string]any{}
	}
	for key, value := range strong {
		strongMap, strongIsMap := value.(map[string]any)
		weakMap, weakIsMap := weak[key].(map[string]any)
		if strongIsMap && weakIsMap {
			weak[key] = mergeInto(weakMap, strongMap)
			continue
		}
		weak[key] = Clone(value)
	}
	return weak
}
