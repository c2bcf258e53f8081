package registry

import (
	"context"

	"github.com/goliatone/go-registry/internal/hydrate"
)

// DecodeOption configures Decode.
type DecodeOption[T any] = hydrate.DecoderOption[T]

// DecodeStrict rejects registry keys without a matching struct field.
func DecodeStrict[T any]() DecodeOption[T] {
	return hydrate.WithDisallowUnknownFields[T]()
}

// DecodeWithDefaults runs fill on the decoded value before validation.
func DecodeWithDefaults[T any](fill func(*T)) DecodeOption[T] {
	return hydrate.WithPostHook[T](func(_ hydrate.Context, value *T) error {
		if fill != nil {
			fill(value)
		}
		return nil
	})
}

// Decode preloads node and decodes its subtree into T using JSON field
// tags. When T or *T implements Validate() error it is run afterwards.
func Decode[T any](ctx context.Context, node *Node, opts ...DecodeOption[T]) (T, error) {
	var zero T
	if err := node.Preload(ctx); err != nil {
		return zero, err
	}
	decoder := hydrate.NewDecoder[T](opts...)
	value, err := decoder.Decode(hydrate.Context{Path: node.path}, node.Export())
	if err != nil {
		return zero, err
	}
	if err := validateValue(&value); err != nil {
		return zero, err
	}
	return value, nil
}

// DecodePath is Decode on the folder at path.
func DecodePath[T any](ctx context.Context, r *Registry, path string, opts ...DecodeOption[T]) (T, error) {
	var zero T
	node, err := r.NodeContext(ctx, path)
	if err != nil {
		return zero, err
	}
	return Decode[T](ctx, node, opts...)
}
