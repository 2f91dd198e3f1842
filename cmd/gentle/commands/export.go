package commands

import (
	"fmt"

	"gentle/pkg/exporter"
	"gentle/pkg/types"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [prefix] [dir]",
	Short: "Write every pointer under prefix as a file in dir",
	Long:  `The reverse of import: pointer <prefix>/<path> becomes <dir>/<path>.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		count := 0

		exp := exporter.NewExporter(G.Store)
		err := exp.RestorePrefix(cmd.Context(), args[0], args[1], func(path string, hash types.Hash, size int64) {
			count++
			fmt.Fprintf(out, "📄 %s (%s, %d bytes)\n", path, hash.Short(), size)
		})
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Fprintf(out, "✅ %d files written to %s\n", count, args[1])
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [prefix]",
	Short: "List pointers under prefix with target sizes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		entries, err := exporter.NewExporter(G.Store).List(cmd.Context(), prefix)
		if err != nil {
			return err
		}
		return exporter.PrintEntries(entries, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, lsCmd)
}
