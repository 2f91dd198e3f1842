package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var findCmd = &cobra.Command{
	Use:   "find [prefix]",
	Short: "List pointers and content ids starting with prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}

		items, err := G.Resolver.Find(cmd.Context(), prefix)
		if err != nil {
			return err
		}
		for _, it := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", it.Kind, it.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(findCmd)
}
