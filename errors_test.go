package registry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goliatone/go-registry/importer"
)

func TestKeyNotFoundErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &KeyNotFoundError{Path: "api", Key: "missing"})
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected errors.Is to match ErrKeyNotFound")
	}
	var typed *KeyNotFoundError
	if !errors.As(err, &typed) || typed.Key != "missing" || typed.Path != "api" {
		t.Fatalf("expected typed error, got %#v", typed)
	}
	if errors.Is(err, ErrNotFolder) {
		t.Fatalf("key not found must not match ErrNotFolder")
	}
}

func TestErrorMessagesNameTheRoot(t *testing.T) {
	err := &KeyNotFoundError{Key: "api"}
	if err.Error() != `registry: key "api" not found under <root>` {
		t.Fatalf("unexpected message %q", err.Error())
	}
	folderErr := &NotFolderError{Path: "api.enabled"}
	if folderErr.Error() != "registry: api.enabled holds a value, not a folder" {
		t.Fatalf("unexpected message %q", folderErr.Error())
	}
}

func TestImportErrorAlias(t *testing.T) {
	cause := errors.New("boom")
	var err error = &importer.ImportError{Source: "a.yaml", Err: cause}
	var typed *ImportError
	if !errors.As(err, &typed) {
		t.Fatalf("expected registry.ImportError to match importer.ImportError")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected unwrap to cause")
	}
}
