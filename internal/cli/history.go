package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-registry/tree"
)

// versionRecord is one rendered history line.
type versionRecord struct {
	ID        string    `json:"id" yaml:"id"`
	Value     any       `json:"value" yaml:"value"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

func newHistoryCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "history <path>",
		Short: "List the recorded versions of a leaf, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := commandContext(cmd)
			entry, err := tree.Walk(ctx, s.store, strings.Split(args[0], ".")...)
			if err != nil {
				return fmt.Errorf("cli: resolve %s: %w", args[0], err)
			}
			if entry.IsFolder() {
				return fmt.Errorf("cli: %s is a folder", args[0])
			}
			versions, err := s.store.History(ctx, entry.ID)
			if err != nil {
				return err
			}
			records := make([]versionRecord, 0, len(versions))
			for _, version := range versions {
				value, err := tree.DecodeVersion(version)
				if err != nil {
					return err
				}
				records = append(records, versionRecord{
					ID:        version.ID,
					Value:     value,
					CreatedAt: version.CreatedAt.UTC(),
				})
			}
			return s.render(records)
		},
	}
}
