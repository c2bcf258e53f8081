package cli

import (
	"github.com/spf13/cobra"

	registry "github.com/goliatone/go-registry"
)

func newGetCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print the value at a dotted path",
		Long: `Prints the value at a dotted path such as api.request_limit. A folder is
printed as a nested document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := commandContext(cmd)
			value, err := s.registry.GetContext(ctx, args[0])
			if err != nil {
				return err
			}
			if node, ok := value.(*registry.Node); ok {
				if err := node.Preload(ctx); err != nil {
					return err
				}
				value = node.Export()
			}
			return s.render(value)
		},
	}
}
