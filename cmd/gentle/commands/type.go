package commands

import (
	"errors"
	"fmt"

	"gentle/pkg/storage"

	"github.com/spf13/cobra"
)

var typeCmd = &cobra.Command{
	Use:   "type [id]",
	Short: "Print whether id names content or a pointer",
	Long:  `Print "content" or "pointer"; print nothing when id matches no single entry.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := G.Resolver.Expand(cmd.Context(), args[0])
		switch {
		case err == nil:
			fmt.Fprintln(cmd.OutOrStdout(), item.Kind)
			return nil
		case errors.Is(err, storage.ErrNotFound),
			errors.Is(err, storage.ErrAmbiguousHash),
			errors.Is(err, storage.ErrInvalidIdentifier):
			return nil
		default:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(typeCmd)
}
