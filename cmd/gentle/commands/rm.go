package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm [id]...",
	Short: "Remove pointers or content objects",
	Long: `Remove the pointer or content matched by each id (an unambiguous prefix is accepted).
Ids are removed in order; the first failure stops the command.
Removing content does not touch pointers that refer to it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			item, err := G.Resolver.Remove(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("rm %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑️  removed %s\n", item)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
