// Package cli implements the registryctl commands over a SQLite entry tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	registry "github.com/goliatone/go-registry"
	"github.com/goliatone/go-registry/tree/sqlite"
)

// NewRootCommand builds the registryctl command tree. Each call returns an
// independent tree, so tests can run commands side by side.
func NewRootCommand() *cobra.Command {
	var configFile string
	defaults := defaultSettings()

	root := &cobra.Command{
		Use:   "registryctl",
		Short: "Inspect and load a configuration registry",
		Long: `registryctl manages a hierarchical configuration registry stored in SQLite.

Settings are read from flags, REGISTRY_* environment variables and an
optional config file, in that order of precedence.

Environment Variables:
  REGISTRY_DB         - path of the SQLite database
  REGISTRY_OUTPUT     - output format for get and export (json, yaml)
  REGISTRY_LOG_LEVEL  - log level (debug, info, warn, error)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	flags.String("db", defaults.DB, "path of the SQLite database")
	flags.StringP("output", "o", defaults.Output, "output format: json or yaml")
	flags.String("log-level", defaults.Log.Level, "log level")

	open := func(cmd *cobra.Command) (*session, error) {
		settings, err := loadSettings(cmd, configFile)
		if err != nil {
			return nil, err
		}
		return openSession(cmd, settings)
	}

	root.AddCommand(
		newImportCommand(open),
		newGetCommand(open),
		newExportCommand(open),
		newHistoryCommand(open),
	)
	return root
}

// Run executes the command tree with args and returns the process exit code.
// Errors are written to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type opener func(cmd *cobra.Command) (*session, error)

// session is the registry and tree backing a single command run.
type session struct {
	settings Settings
	logger   zerolog.Logger
	store    *sqlite.Tree
	registry *registry.Registry
	out      io.Writer
}

func openSession(cmd *cobra.Command, settings Settings) (*session, error) {
	logger := settings.logger(cmd)
	store, err := sqlite.Open(commandContext(cmd), settings.DB)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("db", settings.DB).Msg("tree opened")
	return &session{
		settings: settings,
		logger:   logger,
		store:    store,
		registry: registry.New(store, registry.WithLogger(logger)),
		out:      cmd.OutOrStdout(),
	}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// render writes value in the configured output format.
func (s *session) render(value any) error {
	switch s.settings.Output {
	case "yaml", "yml":
		encoder := yaml.NewEncoder(s.out)
		encoder.SetIndent(2)
		if err := encoder.Encode(value); err != nil {
			return fmt.Errorf("cli: encode yaml: %w", err)
		}
		return encoder.Close()
	case "json", "":
		encoder := json.NewEncoder(s.out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(value); err != nil {
			return fmt.Errorf("cli: encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("cli: unknown output format %q", s.settings.Output)
	}
}
