package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// EncodeValue serialises a leaf value. Scalars (string, bool, numbers, nil)
// and lists of scalars are accepted; maps must be stored as folders.
func EncodeValue(value any) ([]byte, error) {
	if err := checkValue(reflect.ValueOf(value), true); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	return payload, nil
}

// DecodeValue returns the current value of a leaf entry. Lists decode to
// []any. Integral numbers decode to int, or to uint64 above the int range;
// other numbers decode to float64. The payload does not keep the Go type, so
// a whole float such as 2.0 is stored as 2 and reads back as int.
func DecodeValue(entry Entry) (any, error) {
	if entry.IsFolder() {
		return nil, fmt.Errorf("%w: %q", ErrNotLeaf, entry.Key)
	}
	return decodePayload(entry.Value)
}

// DecodeVersion returns the value recorded by a version.
func DecodeVersion(version Version) (any, error) {
	return decodePayload(version.Value)
}

func decodePayload(payload []byte) (any, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("tree: decode value: %w", err)
	}
	return normalizeDecoded(raw), nil
}

func normalizeDecoded(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if i, err := typed.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
			return int(i)
		}
		if u, err := strconv.ParseUint(typed.String(), 10, 64); err == nil {
			return u
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = normalizeDecoded(typed[i])
		}
		return out
	default:
		return typed
	}
}

func checkValue(v reflect.Value, allowList bool) error {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return checkValue(v.Elem(), allowList)
	case reflect.Slice, reflect.Array:
		if !allowList {
			return fmt.Errorf("%w: nested list", ErrUnsupportedValue)
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkValue(v.Index(i), false); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedValue, v.Type())
	}
}

func fmtPathError(err error, keys []string) error {
	return fmt.Errorf("%w: %q", err, strings.Join(keys, "."))
}
