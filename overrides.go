package registry

import (
	"context"
	"sort"

	"github.com/goliatone/go-registry/pkg/activity"
)

// Override is one temporary key/value pair.
type Override struct {
	Key   string
	Value any
}

// Overrides is an ordered override frame. Originals are captured and
// restored in slice order.
type Overrides []Override

// OverridesFromMap builds a frame ordered by key.
func OverridesFromMap(values map[string]any) Overrides {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make(Overrides, 0, len(keys))
	for _, key := range keys {
		out = append(out, Override{Key: key, Value: values[key]})
	}
	return out
}

// Keys returns the override keys in order.
func (o Overrides) Keys() []string {
	keys := make([]string, 0, len(o))
	for _, override := range o {
		keys = append(keys, override.Key)
	}
	return keys
}

// With applies overrides to the node cache, runs work with registry resets
// suppressed, then restores the original values. Restoration runs when work
// returns, fails or panics; a panic is re-raised afterwards.
//
// Every override key must resolve through Get beforehand. When one does not,
// nothing is applied and the lookup error is returned. Suppression nests, so
// the registry stays protected until the outermost scope ends.
//
// Overrides act on the shared cache: concurrent readers of the node observe
// them while work runs.
func (n *Node) With(overrides Overrides, work func() error) error {
	_, err := WithResult(n, overrides, func() (struct{}, error) {
		if work == nil {
			return struct{}{}, nil
		}
		return struct{}{}, work()
	})
	return err
}

// WithResult is With for work that produces a value.
func WithResult[T any](n *Node, overrides Overrides, work func() (T, error)) (T, error) {
	var zero T

	originals := make(Overrides, 0, len(overrides))
	for _, override := range overrides {
		current, err := n.Get(override.Key)
		if err != nil {
			return zero, err
		}
		originals = append(originals, Override{Key: override.Key, Value: current})
	}

	for _, override := range overrides {
		n.Set(override.Key, override.Value)
	}

	r := n.registry
	r.SuppressReset()
	defer func() {
		r.AllowReset()
		for _, original := range originals {
			n.Set(original.Key, original.Value)
		}
	}()

	r.emit(context.Background(), activity.BuildOverrideAppliedEvent(activity.RegistryEventInput{
		Path: n.path,
		Keys: overrides.Keys(),
	}))

	if work == nil {
		return zero, nil
	}
	return work()
}
