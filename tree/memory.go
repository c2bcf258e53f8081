package tree

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryTree is an in-memory Tree intended for tests, examples and
// single-process use. Sibling lookup is a map access.
type MemoryTree struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	children map[string]map[string]string
	versions map[string][]Version
	now      func() time.Time
}

// MemoryOption configures a MemoryTree.
type MemoryOption func(*MemoryTree)

// WithClock overrides the time source used for UpdatedAt and CreatedAt.
func WithClock(now func() time.Time) MemoryOption {
	return func(t *MemoryTree) {
		if now != nil {
			t.now = now
		}
	}
}

// NewMemoryTree constructs an empty tree.
func NewMemoryTree(opts ...MemoryOption) *MemoryTree {
	t := &MemoryTree{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	t.reset()
	return t
}

func (t *MemoryTree) reset() {
	t.entries = map[string]Entry{}
	t.children = map[string]map[string]string{}
}

func (t *MemoryTree) Root(_ context.Context) (Entry, error) {
	return rootEntry(), nil
}

func (t *MemoryTree) FindChild(_ context.Context, parentID, key string) (Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.children[parentID][key]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q under %q", ErrNotFound, key, parentID)
	}
	return cloneEntry(t.entries[id]), nil
}

func (t *MemoryTree) Children(_ context.Context, parentID string) ([]Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.checkParentLocked(parentID); err != nil {
		return nil, err
	}
	ids := t.children[parentID]
	keys := make([]string, 0, len(ids))
	for key := range ids {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, key := range keys {
		out = append(out, cloneEntry(t.entries[ids[key]]))
	}
	return out, nil
}

func (t *MemoryTree) EnsureFolder(_ context.Context, parentID, key string) (Entry, error) {
	if key == "" {
		return Entry{}, ErrEmptyKey
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkParentLocked(parentID); err != nil {
		return Entry{}, err
	}
	if id, ok := t.children[parentID][key]; ok {
		existing := t.entries[id]
		if !existing.IsFolder() {
			return Entry{}, fmt.Errorf("%w: %q is a leaf", ErrKindConflict, key)
		}
		return cloneEntry(existing), nil
	}
	entry := Entry{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Key:       key,
		Kind:      KindFolder,
		UpdatedAt: t.now(),
	}
	t.insertLocked(entry)
	return cloneEntry(entry), nil
}

func (t *MemoryTree) PutValue(_ context.Context, parentID, key string, value any) (Entry, error) {
	if key == "" {
		return Entry{}, ErrEmptyKey
	}
	payload, err := EncodeValue(value)
	if err != nil {
		return Entry{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkParentLocked(parentID); err != nil {
		return Entry{}, err
	}

	now := t.now()
	entry := Entry{ID: uuid.NewString(), ParentID: parentID, Key: key, Kind: KindLeaf}
	if id, ok := t.children[parentID][key]; ok {
		entry = t.entries[id]
		if entry.IsFolder() {
			return Entry{}, fmt.Errorf("%w: %q is a folder", ErrKindConflict, key)
		}
	}
	version := Version{
		ID:        uuid.NewString(),
		EntryID:   entry.ID,
		Value:     payload,
		CreatedAt: now,
	}
	entry.Value = payload
	entry.VersionID = version.ID
	entry.UpdatedAt = now
	t.insertLocked(entry)
	t.versions[entry.ID] = append(t.versions[entry.ID], version)
	return cloneEntry(entry), nil
}

func (t *MemoryTree) DeleteAll(_ context.Context) error {
	t.mu.Lock()
	t.reset()
	t.mu.Unlock()
	return nil
}

func (t *MemoryTree) DeleteAllVersionHistory(_ context.Context) error {
	t.mu.Lock()
	t.versions = map[string][]Version{}
	t.mu.Unlock()
	return nil
}

func (t *MemoryTree) History(_ context.Context, entryID string) ([]Version, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.entries[entryID]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, entryID)
	}
	history := t.versions[entryID]
	out := make([]Version, len(history))
	for i := range history {
		out[i] = history[i]
		out[i].Value = append([]byte(nil), history[i].Value...)
	}
	return out, nil
}

// Len returns the number of stored entries, excluding the root.
func (t *MemoryTree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *MemoryTree) checkParentLocked(parentID string) error {
	if parentID == RootID {
		return nil
	}
	parent, ok := t.entries[parentID]
	if !ok {
		return fmt.Errorf("%w: parent %q", ErrNotFound, parentID)
	}
	if !parent.IsFolder() {
		return fmt.Errorf("%w: parent %q is a leaf", ErrKindConflict, parent.Key)
	}
	return nil
}

func (t *MemoryTree) insertLocked(entry Entry) {
	if t.versions == nil {
		t.versions = map[string][]Version{}
	}
	t.entries[entry.ID] = entry
	siblings, ok := t.children[entry.ParentID]
	if !ok {
		siblings = map[string]string{}
		t.children[entry.ParentID] = siblings
	}
	siblings[entry.Key] = entry.ID
}

func cloneEntry(entry Entry) Entry {
	out := entry
	if entry.Value != nil {
		out.Value = append([]byte(nil), entry.Value...)
	}
	return out
}
