package registry

import (
	"io/fs"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-registry/importer"
	"github.com/goliatone/go-registry/pkg/activity"
)

// Option configures a Registry.
type Option func(*config)

type config struct {
	logger        zerolog.Logger
	evaluator     Evaluator
	programCache  ProgramCache
	functions     *FunctionRegistry
	activityHooks activity.Hooks
	activity      activity.Config
	resetOnImport bool
	importFS      fs.FS
}

func applyOptions(opts []Option) config {
	cfg := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (c config) importerOptions() []importer.Option {
	opts := []importer.Option{
		importer.WithLogger(c.logger.With().Str("component", "importer").Logger()),
	}
	if c.importFS != nil {
		opts = append(opts, importer.WithFS(c.importFS))
	}
	return opts
}

// WithLogger attaches a logger. The default discards output.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithEvaluator configures the rule evaluator used by Node.Evaluate. The
// default is an expr evaluator built from the program cache and functions.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithResetOnImport resets the cache after every successful import.
func WithResetOnImport(enabled bool) Option {
	return func(cfg *config) {
		cfg.resetOnImport = enabled
	}
}

// WithImportFS resolves import locators inside fsys.
func WithImportFS(fsys fs.FS) Option {
	return func(cfg *config) {
		cfg.importFS = fsys
	}
}

type validator interface {
	Validate() error
}

func validateValue[T any](value *T) error {
	if value == nil {
		return nil
	}
	if v, ok := any(value).(validator); ok {
		return v.Validate()
	}
	inner := any(*value)
	if rv := reflect.ValueOf(inner); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	if v, ok := inner.(validator); ok {
		return v.Validate()
	}
	return nil
}
