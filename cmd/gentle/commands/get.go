package commands

import (
	"fmt"

	"gentle/pkg/lookup"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show content or pointer target",
	Long: `Look up a pointer name, a content id, or an unambiguous prefix of either.
Content is written to stdout as-is; for a pointer the target content id is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := G.Resolver.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if v.Kind == lookup.KindPointer {
			fmt.Fprintln(out, v.Target)
			return nil
		}
		// 二进制内容可以通过 > file.bin 重定向
		_, err = out.Write(v.Data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
