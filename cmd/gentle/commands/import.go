package commands

import (
	"fmt"

	"gentle/pkg/importer"

	"github.com/spf13/cobra"
)

var (
	importPrefix  string
	importWorkers int
)

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Store every file under a directory and point at it",
	Long: `Walk a directory, store each file that is not ignored by .gentleignore and
point <prefix>/<relative path> at its content.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		im := G.Importer.With(importer.WithWorkers(importWorkers))
		results, err := im.ImportDir(cmd.Context(), args[0], importPrefix)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		imported, skipped := 0, 0
		for _, r := range results {
			if r.Skipped {
				skipped++
				fmt.Fprintf(out, "⏭️  %s (%s)\n", r.Path, r.Reason)
				continue
			}
			imported++
			fmt.Fprintf(out, "✅ %s -> %s\n", r.Pointer, r.Hash.Short())
		}
		fmt.Fprintf(out, "📦 %d imported, %d skipped\n", imported, skipped)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importPrefix, "prefix", "", "pointer prefix for imported files")
	importCmd.Flags().IntVarP(&importWorkers, "workers", "j", 0, "parallel uploads (default GOMAXPROCS)")
	rootCmd.AddCommand(importCmd)
}
