package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a gentle repository",
	Long:  `Create the data directory (storage.path, default ./.gentle) used by the disk, badger and sqlite backends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		// 1. 仓库路径由配置决定 (--storage-path / GENTLE_STORAGE_PATH / config.yaml)
		repoPath := viper.GetString("storage.path")
		if repoPath == "" {
			return fmt.Errorf("storage path not set")
		}

		// 2. 检查是否已存在
		if _, err := os.Stat(repoPath); err == nil {
			fmt.Fprintf(out, "⚠️  gentle repository already exists in %s\n", repoPath)
			return nil
		}

		// 3. 创建目录结构 (各后端首次打开时自行创建子目录)
		if err := os.MkdirAll(repoPath, 0755); err != nil {
			return fmt.Errorf("failed to create repo directory: %w", err)
		}

		fmt.Fprintf(out, "✅ Initialized empty gentle repository in %s\n", repoPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
