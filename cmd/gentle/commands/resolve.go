package commands

import (
	"gentle/pkg/types"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [pointer]",
	Short: "Print the content a pointer refers to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, _, err := G.Refs.Resolve(cmd.Context(), types.PointerID(args[0]))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
