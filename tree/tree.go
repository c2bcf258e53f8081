// Package tree defines the durable entry tree the registry reads from: the
// Entry model, the value codec, and the read/write/history contracts that
// storage backends implement.
//
// The registry core only consumes Reader. Writer and Historian are used by
// the importer and administrative tooling.
//
// Data flow:
//
//	importer -> Writer.EnsureFolder / Writer.PutValue -> storage
//	registry -> Reader.FindChild -> DecodeValue -> node cache
package tree

import (
	"context"
	"errors"
	"time"
)

// RootID identifies the implicit root folder of every tree.
const RootID = "root"

var (
	// ErrNotFound indicates a missing entry.
	ErrNotFound = errors.New("tree: entry not found")
	// ErrKindConflict indicates a write that would turn a folder into a leaf
	// or a leaf into a folder.
	ErrKindConflict = errors.New("tree: entry kind conflict")
	// ErrNotLeaf indicates a value decode was attempted on a folder.
	ErrNotLeaf = errors.New("tree: entry is not a leaf")
	// ErrUnsupportedValue indicates a value that cannot be stored on a leaf.
	ErrUnsupportedValue = errors.New("tree: unsupported value")
	// ErrEmptyKey indicates a write with an empty key.
	ErrEmptyKey = errors.New("tree: key must not be empty")
)

// Kind distinguishes folders from leaves.
type Kind int

const (
	// KindFolder entries hold children and never a value.
	KindFolder Kind = iota + 1
	// KindLeaf entries hold a value and never children.
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// Entry is one node of the tree.
type Entry struct {
	ID        string
	ParentID  string
	Key       string
	Kind      Kind
	Value     []byte
	VersionID string
	UpdatedAt time.Time
}

// IsFolder reports whether the entry is a folder.
func (e Entry) IsFolder() bool {
	return e.Kind == KindFolder
}

// Version is one historical value of a leaf entry.
type Version struct {
	ID        string    `json:"id"`
	EntryID   string    `json:"entry_id"`
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Reader resolves entries. FindChild returns an error matching ErrNotFound
// when parentID has no child called key. Children are ordered by key.
type Reader interface {
	Root(ctx context.Context) (Entry, error)
	FindChild(ctx context.Context, parentID, key string) (Entry, error)
	Children(ctx context.Context, parentID string) ([]Entry, error)
}

// Writer creates entries and appends leaf versions.
type Writer interface {
	EnsureFolder(ctx context.Context, parentID, key string) (Entry, error)
	PutValue(ctx context.Context, parentID, key string, value any) (Entry, error)
	DeleteAll(ctx context.Context) error
	DeleteAllVersionHistory(ctx context.Context) error
}

// Historian lists the versions of a leaf, oldest first.
type Historian interface {
	History(ctx context.Context, entryID string) ([]Version, error)
}

// Tree is the full storage contract implemented by backends.
type Tree interface {
	Reader
	Writer
	Historian
}

func rootEntry() Entry {
	return Entry{ID: RootID, Kind: KindFolder}
}

// Walk follows keys from the root and returns the entry at the end of the
// path. An empty path returns the root.
func Walk(ctx context.Context, r Reader, keys ...string) (Entry, error) {
	current, err := r.Root(ctx)
	if err != nil {
		return Entry{}, err
	}
	for i, key := range keys {
		if !current.IsFolder() {
			return Entry{}, fmtPathError(ErrKindConflict, keys[:i])
		}
		current, err = r.FindChild(ctx, current.ID, key)
		if err != nil {
			return Entry{}, err
		}
	}
	return current, nil
}
