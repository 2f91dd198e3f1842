package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fullCmd = &cobra.Command{
	Use:   "full [id]",
	Short: "Print the full form of an abbreviated id",
	Long: `Expand a prefix to the one pointer or content id it matches.
Fails when nothing or more than one entry matches.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := G.Resolver.Expand(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), item.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fullCmd)
}
