// Package sqlite provides a durable tree.Tree backed by SQLite through the
// pure-Go modernc.org/sqlite driver.
//
// Entries live in registry_entries with a unique (parent_id, entry_key)
// index, so sibling lookup is an indexed query. Every leaf write appends a
// row to registry_versions.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-registry/tree"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

var _ tree.Tree = (*Tree)(nil)

const entryColumns = "id, parent_id, entry_key, kind, value, version_id, updated_at"

// Tree stores entries in a SQLite database.
type Tree struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Tree.
type Option func(*Tree)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tree) {
		if now != nil {
			t.now = now
		}
	}
}

// Open opens (or creates) the database at path and applies the schema. Use
// ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, opts ...Option) (*Tree, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	t, err := New(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

// New wraps an existing database handle and applies the schema.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Tree, error) {
	if db == nil {
		return nil, errors.New("sqlite: database handle is required")
	}
	t := &Tree{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if err := t.migrate(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Close releases the database handle.
func (t *Tree) Close() error {
	return t.db.Close()
}

func (t *Tree) migrate(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := t.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("sqlite: execute %s: %w", pragma, err)
		}
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migration statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit migration: %w", err)
	}
	return nil
}

func (t *Tree) Root(_ context.Context) (tree.Entry, error) {
	return tree.Entry{ID: tree.RootID, Kind: tree.KindFolder}, nil
}

func (t *Tree) FindChild(ctx context.Context, parentID, key string) (tree.Entry, error) {
	return findChild(ctx, t.db, parentID, key)
}

func (t *Tree) Children(ctx context.Context, parentID string) ([]tree.Entry, error) {
	if err := checkParent(ctx, t.db, parentID); err != nil {
		return nil, err
	}
	rows, err := t.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM registry_entries WHERE parent_id = ? ORDER BY entry_key",
		parentID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list children of %q: %w", parentID, err)
	}
	defer rows.Close()

	var out []tree.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list children of %q: %w", parentID, err)
	}
	return out, nil
}

func (t *Tree) EnsureFolder(ctx context.Context, parentID, key string) (tree.Entry, error) {
	if key == "" {
		return tree.Entry{}, tree.ErrEmptyKey
	}
	var out tree.Entry
	err := t.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkParent(ctx, tx, parentID); err != nil {
			return err
		}
		existing, err := findChild(ctx, tx, parentID, key)
		switch {
		case err == nil:
			if !existing.IsFolder() {
				return fmt.Errorf("%w: %q is a leaf", tree.ErrKindConflict, key)
			}
			out = existing
			return nil
		case !errors.Is(err, tree.ErrNotFound):
			return err
		}

		out = tree.Entry{
			ID:        uuid.NewString(),
			ParentID:  parentID,
			Key:       key,
			Kind:      tree.KindFolder,
			UpdatedAt: t.now().UTC(),
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO registry_entries ("+entryColumns+") VALUES (?, ?, ?, ?, NULL, NULL, ?)",
			out.ID, out.ParentID, out.Key, int(out.Kind), out.UpdatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("sqlite: insert folder %q: %w", key, err)
		}
		return nil
	})
	return out, err
}

func (t *Tree) PutValue(ctx context.Context, parentID, key string, value any) (tree.Entry, error) {
	if key == "" {
		return tree.Entry{}, tree.ErrEmptyKey
	}
	payload, err := tree.EncodeValue(value)
	if err != nil {
		return tree.Entry{}, err
	}

	var out tree.Entry
	err = t.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkParent(ctx, tx, parentID); err != nil {
			return err
		}
		now := t.now().UTC()
		versionID := uuid.NewString()

		existing, err := findChild(ctx, tx, parentID, key)
		switch {
		case err == nil:
			if existing.IsFolder() {
				return fmt.Errorf("%w: %q is a folder", tree.ErrKindConflict, key)
			}
			out = existing
			_, err = tx.ExecContext(ctx,
				"UPDATE registry_entries SET value = ?, version_id = ?, updated_at = ? WHERE id = ?",
				payload, versionID, now.UnixNano(), out.ID)
		case errors.Is(err, tree.ErrNotFound):
			out = tree.Entry{ID: uuid.NewString(), ParentID: parentID, Key: key, Kind: tree.KindLeaf}
			_, err = tx.ExecContext(ctx,
				"INSERT INTO registry_entries ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
				out.ID, parentID, key, int(tree.KindLeaf), payload, versionID, now.UnixNano())
		}
		if err != nil {
			return fmt.Errorf("sqlite: write value %q: %w", key, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO registry_versions (id, entry_id, value, created_at) VALUES (?, ?, ?, ?)",
			versionID, out.ID, payload, now.UnixNano()); err != nil {
			return fmt.Errorf("sqlite: append version for %q: %w", key, err)
		}

		out.Value = payload
		out.VersionID = versionID
		out.UpdatedAt = now
		return nil
	})
	return out, err
}

func (t *Tree) DeleteAll(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, "DELETE FROM registry_entries"); err != nil {
		return fmt.Errorf("sqlite: delete entries: %w", err)
	}
	return nil
}

func (t *Tree) DeleteAllVersionHistory(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, "DELETE FROM registry_versions"); err != nil {
		return fmt.Errorf("sqlite: delete versions: %w", err)
	}
	return nil
}

func (t *Tree) History(ctx context.Context, entryID string) ([]tree.Version, error) {
	var exists int
	err := t.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM registry_entries WHERE id = ?", entryID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("sqlite: lookup entry %q: %w", entryID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %q", tree.ErrNotFound, entryID)
	}

	rows, err := t.db.QueryContext(ctx,
		"SELECT id, entry_id, value, created_at FROM registry_versions WHERE entry_id = ? ORDER BY created_at, rowid",
		entryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list versions of %q: %w", entryID, err)
	}
	defer rows.Close()

	history := []tree.Version{}
	for rows.Next() {
		var (
			version   tree.Version
			createdAt int64
		)
		if err := rows.Scan(&version.ID, &version.EntryID, &version.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan version: %w", err)
		}
		version.CreatedAt = time.Unix(0, createdAt).UTC()
		history = append(history, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list versions of %q: %w", entryID, err)
	}
	return history, nil
}

func (t *Tree) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func findChild(ctx context.Context, q queryer, parentID, key string) (tree.Entry, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM registry_entries WHERE parent_id = ? AND entry_key = ?",
		parentID, key)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tree.Entry{}, fmt.Errorf("%w: %q under %q", tree.ErrNotFound, key, parentID)
	}
	return entry, err
}

func checkParent(ctx context.Context, q queryer, parentID string) error {
	if parentID == tree.RootID {
		return nil
	}
	var kind int
	err := q.QueryRowContext(ctx, "SELECT kind FROM registry_entries WHERE id = ?", parentID).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: parent %q", tree.ErrNotFound, parentID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: lookup parent %q: %w", parentID, err)
	}
	if tree.Kind(kind) != tree.KindFolder {
		return fmt.Errorf("%w: parent %q is a leaf", tree.ErrKindConflict, parentID)
	}
	return nil
}

func scanEntry(row scanner) (tree.Entry, error) {
	var (
		entry     tree.Entry
		kind      int
		versionID sql.NullString
		updatedAt int64
	)
	if err := row.Scan(&entry.ID, &entry.ParentID, &entry.Key, &kind, &entry.Value, &versionID, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tree.Entry{}, err
		}
		return tree.Entry{}, fmt.Errorf("sqlite: scan entry: %w", err)
	}
	entry.Kind = tree.Kind(kind)
	entry.VersionID = versionID.String
	entry.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return entry, nil
}
