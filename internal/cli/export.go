package cli

import (
	"github.com/spf13/cobra"
)

func newExportCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Print the whole tree or one folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			ctx := commandContext(cmd)
			node, err := s.registry.NodeContext(ctx, path)
			if err != nil {
				return err
			}
			if err := node.Preload(ctx); err != nil {
				return err
			}
			return s.render(node.Export())
		},
	}
}
