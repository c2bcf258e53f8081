package registry

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-registry/importer"
)

var (
	// ErrKeyNotFound matches every *KeyNotFoundError.
	ErrKeyNotFound = errors.New("registry: key not found")
	// ErrNotFolder matches every *NotFolderError.
	ErrNotFolder = errors.New("registry: path is not a folder")
	// ErrInvalidPath indicates an empty path or an empty path segment.
	ErrInvalidPath = errors.New("registry: invalid path")
	// ErrTypeMismatch indicates Value could not convert a stored value.
	ErrTypeMismatch = errors.New("registry: type mismatch")
	// ErrNoEvaluator indicates no rule evaluator could be configured.
	ErrNoEvaluator = errors.New("registry: evaluator not configured")
)

// ImportError is returned by Import and ImportLayers when a source cannot be
// read, parsed or written.
type ImportError = importer.ImportError

// KeyNotFoundError reports a key missing from both the node cache and the
// tree.
type KeyNotFoundError struct {
	// Path is the dotted path of the node the lookup ran on.
	Path string
	Key  string
}

func (e *KeyNotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("registry: key %q not found under %s", e.Key, pathLabel(e.Path))
}

// Is reports ErrKeyNotFound equivalence.
func (e *KeyNotFoundError) Is(target error) bool {
	return target == ErrKeyNotFound
}

// NotFolderError reports a path traversal through a leaf value.
type NotFolderError struct {
	Path string
}

func (e *NotFolderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("registry: %s holds a value, not a folder", pathLabel(e.Path))
}

// Is reports ErrNotFolder equivalence.
func (e *NotFolderError) Is(target error) bool {
	return target == ErrNotFolder
}

func pathLabel(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

func isKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
