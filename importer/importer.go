// Package importer loads structured configuration sources (YAML, JSON or
// TOML) into a tree.Writer. Mappings become folders and every other value
// becomes a leaf version.
//
// Purging happens before the source is read. A source that fails to load
// after a purge leaves the tree empty; callers that need atomic replacement
// must validate the source first (see Parse).
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-registry/layering"
	"github.com/goliatone/go-registry/tree"
)

// Options controls a single import.
type Options struct {
	// Purge deletes every entry and all version history before loading.
	Purge bool
	// Format forces a source format. Empty detects it from the extension.
	Format Format
}

// ImportError wraps any failure raised while importing a source.
type ImportError struct {
	Source string
	Err    error
}

func (e *ImportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("importer: import %q: %v", e.Source, e.Err)
}

func (e *ImportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrNoSources indicates ImportLayers was called without sources.
var ErrNoSources = errors.New("importer: at least one source is required")

// Importer writes decoded sources into a tree.
type Importer struct {
	tree   tree.Writer
	fsys   fs.FS
	logger zerolog.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger attaches a logger. The default discards output.
func WithLogger(logger zerolog.Logger) Option {
	return func(i *Importer) {
		i.logger = logger
	}
}

// WithFS resolves source locators inside fsys instead of the OS filesystem.
func WithFS(fsys fs.FS) Option {
	return func(i *Importer) {
		i.fsys = fsys
	}
}

// New constructs an Importer writing into w.
func New(w tree.Writer, opts ...Option) *Importer {
	i := &Importer{tree: w, logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// ImportFrom loads one source into the tree.
func (i *Importer) ImportFrom(ctx context.Context, source string, opts Options) error {
	return i.ImportLayers(ctx, []string{source}, opts)
}

// ImportLayers loads several sources ordered strongest first, merging them
// before anything is written.
func (i *Importer) ImportLayers(ctx context.Context, sources []string, opts Options) error {
	if len(sources) == 0 {
		return ErrNoSources
	}
	label := sources[0]
	if opts.Purge {
		if err := i.purge(ctx); err != nil {
			return &ImportError{Source: label, Err: err}
		}
	}

	layers := make([]map[string]any, 0, len(sources))
	for _, source := range sources {
		doc, err := i.load(source, opts.Format)
		if err != nil {
			return &ImportError{Source: source, Err: err}
		}
		layers = append(layers, doc)
	}

	count, err := i.write(ctx, tree.RootID, layering.MergeMaps(layers...))
	if err != nil {
		return &ImportError{Source: label, Err: err}
	}
	i.logger.Info().
		Strs("sources", sources).
		Bool("purge", opts.Purge).
		Int("entries", count).
		Msg("import completed")
	return nil
}

// ImportMap writes an already decoded document.
func (i *Importer) ImportMap(ctx context.Context, doc map[string]any, opts Options) error {
	if opts.Purge {
		if err := i.purge(ctx); err != nil {
			return &ImportError{Source: "<map>", Err: err}
		}
	}
	normalized, err := normalizeDocument(doc)
	if err != nil {
		return &ImportError{Source: "<map>", Err: err}
	}
	if _, err := i.write(ctx, tree.RootID, normalized); err != nil {
		return &ImportError{Source: "<map>", Err: err}
	}
	return nil
}

func (i *Importer) purge(ctx context.Context) error {
	if err := i.tree.DeleteAll(ctx); err != nil {
		return fmt.Errorf("purge entries: %w", err)
	}
	if err := i.tree.DeleteAllVersionHistory(ctx); err != nil {
		return fmt.Errorf("purge version history: %w", err)
	}
	i.logger.Warn().Msg("registry tree purged")
	return nil
}

func (i *Importer) load(source string, format Format) (map[string]any, error) {
	if format == "" {
		detected, err := DetectFormat(source)
		if err != nil {
			return nil, err
		}
		format = detected
	}
	data, err := i.read(source)
	if err != nil {
		return nil, err
	}
	return Parse(format, data)
}

func (i *Importer) read(source string) ([]byte, error) {
	if i.fsys != nil {
		return fs.ReadFile(i.fsys, source)
	}
	return os.ReadFile(source)
}

func (i *Importer) write(ctx context.Context, parentID string, doc map[string]any) (int, error) {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	count := 0
	for _, key := range keys {
		if nested, ok := doc[key].(map[string]any); ok {
			folder, err := i.tree.EnsureFolder(ctx, parentID, key)
			if err != nil {
				return count, err
			}
			count++
			n, err := i.write(ctx, folder.ID, nested)
			count += n
			if err != nil {
				return count, err
			}
			continue
		}
		if _, err := i.tree.PutValue(ctx, parentID, key, doc[key]); err != nil {
			return count, fmt.Errorf("write %q: %w", key, err)
		}
		count++
	}
	return count, nil
}
