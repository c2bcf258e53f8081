package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	registry "github.com/goliatone/go-registry"
	"github.com/goliatone/go-registry/importer"
)

func newImportCommand(open opener) *cobra.Command {
	var (
		purge  bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "import <source> [source...]",
		Short: "Load configuration sources into the tree",
		Long: `Loads YAML, JSON or TOML sources into the tree. With several sources the
first one wins on conflicting keys.

--purge deletes every entry and all version history before loading. A purge
is not rolled back when the load fails.

Examples:
  registryctl import config.yaml
  registryctl import --purge overrides.yaml base.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := importer.ParseFormat(format)
			if err != nil {
				return err
			}
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			opts := registry.ImportOptions{Purge: purge, Format: parsed}
			if err := s.registry.ImportLayers(commandContext(cmd), args, opts); err != nil {
				return err
			}
			s.logger.Info().Strs("sources", args).Bool("purge", purge).Msg("import complete")
			_, err = fmt.Fprintf(s.out, "imported %d source(s)\n", len(args))
			return err
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "delete all entries and history before loading")
	cmd.Flags().StringVar(&format, "format", "", "force the source format (yaml, json, toml)")
	return cmd
}
