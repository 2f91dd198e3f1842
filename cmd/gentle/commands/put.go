package commands

import (
	"fmt"
	"io"
	"os"

	"gentle/pkg/types"

	"github.com/spf13/cobra"
)

var putPointer string

var putCmd = &cobra.Command{
	Use:   "put [file]",
	Short: "Store content and print its id",
	Long: `Read content from a file (or stdin when no file or "-" is given), store it
and print its content id. With --pointer the pointer is moved to the new content.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// 1. 读取输入
		var (
			data []byte
			err  error
		)
		if len(args) == 0 || args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		// 2. 只存内容
		if putPointer == "" {
			hash, err := G.Store.ContentStore().Put(ctx, data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		}

		// 3. 存内容并移动指针
		hash, prev, err := G.Refs.Publish(ctx, types.PointerID(putPointer), data)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		fmt.Fprintf(cmd.ErrOrStderr(), "📌 %s: %s -> %s\n", putPointer, describe(prev), hash.Short())
		return nil
	},
}

// describe 把 NoHash 显示为 (none)
func describe(h types.Hash) string {
	if h.IsZero() {
		return "(none)"
	}
	return h.Short()
}

func init() {
	putCmd.Flags().StringVarP(&putPointer, "pointer", "p", "", "also point this pointer at the stored content")
	rootCmd.AddCommand(putCmd)
}
