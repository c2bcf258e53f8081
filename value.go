package registry

import (
	"context"
	"fmt"
	"math"
	"reflect"
)

// Value resolves path and returns it as T. Numeric values convert between
// Go numeric kinds, so an int leaf can be read as int64 or float64. A
// conversion that would drop a fraction, change sign or overflow T fails
// with ErrTypeMismatch.
func Value[T any](r *Registry, path string) (T, error) {
	return ValueContext[T](context.Background(), r, path)
}

// ValueContext is Value with a caller supplied context.
func ValueContext[T any](ctx context.Context, r *Registry, path string) (T, error) {
	var zero T
	raw, err := r.GetContext(ctx, path)
	if err != nil {
		return zero, err
	}
	return convert[T](path, raw)
}

func convert[T any](path string, raw any) (T, error) {
	var zero T
	if typed, ok := raw.(T); ok {
		return typed, nil
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	rv := reflect.ValueOf(raw)
	if rv.IsValid() && isNumeric(rv.Kind()) && isNumeric(target.Kind()) {
		if !fitsNumber(rv, target) {
			return zero, fmt.Errorf("%w: %s holds %v, out of range for %s", ErrTypeMismatch, pathLabel(path), raw, target)
		}
		return rv.Convert(target).Interface().(T), nil
	}
	return zero, fmt.Errorf("%w: %s holds %T, want %s", ErrTypeMismatch, pathLabel(path), raw, target)
}

// fitsNumber reports whether rv converts to target without loss.
func fitsNumber(rv reflect.Value, target reflect.Type) bool {
	sample := reflect.New(target).Elem()
	switch {
	case isSigned(rv.Kind()):
		i := rv.Int()
		switch {
		case isSigned(target.Kind()):
			return !sample.OverflowInt(i)
		case isUnsigned(target.Kind()):
			return i >= 0 && !sample.OverflowUint(uint64(i))
		default:
			return true
		}
	case isUnsigned(rv.Kind()):
		u := rv.Uint()
		switch {
		case isSigned(target.Kind()):
			return u <= math.MaxInt64 && !sample.OverflowInt(int64(u))
		case isUnsigned(target.Kind()):
			return !sample.OverflowUint(u)
		default:
			return true
		}
	default:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return !isSigned(target.Kind()) && !isUnsigned(target.Kind())
		}
		switch {
		case isSigned(target.Kind()):
			// 2^63 is the first float64 outside int64.
			return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 && !sample.OverflowInt(int64(f))
		case isUnsigned(target.Kind()):
			return f == math.Trunc(f) && f >= 0 && f < math.MaxUint64 && !sample.OverflowUint(uint64(f))
		default:
			return !sample.OverflowFloat(f)
		}
	}
}

func isSigned(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

func isUnsigned(kind reflect.Kind) bool {
	switch kind {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func isNumeric(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
