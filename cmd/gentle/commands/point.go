package commands

import (
	"fmt"

	"gentle/pkg/types"

	"github.com/spf13/cobra"
)

var pointCmd = &cobra.Command{
	Use:   "point [pointer] [content-id]",
	Short: "Create or move a pointer",
	Long: `Bind a pointer to a content id (a unique prefix is accepted) and print the
previous target. The content does not have to exist.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pointer := types.PointerID(args[0])

		// 1. 完整 Hash 直接使用，短哈希在内容库中扩展
		target, err := G.Resolver.ExpandContent(ctx, args[1])
		if err != nil {
			return err
		}

		// 2. 移动指针
		prev, err := G.Store.PointerStore().Put(ctx, pointer, target)
		if err != nil {
			return err
		}

		if prev.IsZero() {
			fmt.Fprintln(cmd.OutOrStdout(), "(none)")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), prev)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "📌 %s: %s -> %s\n", pointer, describe(prev), target.Short())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pointCmd)
}
