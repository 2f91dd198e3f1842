package commands

import (
	"fmt"
	"os"

	"gentle/pkg/app"
	"gentle/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	G *app.App
)

// 不需要打开存储的命令
var standalone = map[string]bool{
	"init":   true,
	"random": true,
	"help":   true,
}

var rootCmd = &cobra.Command{
	Use:   "gentle",
	Short: "gentle: content-addressed store with named pointers",
	Long: `gentle stores immutable content under the SHA-256 of its bytes and keeps
mutable, human-chosen pointers to that content.`,
	SilenceUsage: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if standalone[cmd.Name()] || G != nil {
			return nil
		}

		// 统一初始化 App
		var err error
		G, err = app.NewApp(cmd.Context())
		if err != nil {
			// 友好的错误提示
			return fmt.Errorf("failed to initialize gentle: %w\n(Did you run 'gentle init'?)", err)
		}
		return nil
	},
}

// Execute 是入口
func Execute() error {
	defer func() {
		if G != nil {
			_ = G.Close()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	// 在初始化时，加载配置
	cobra.OnInitialize(initConfig)

	// 1. 定义全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.gentle/config.yaml or $HOME/.gentle/config.yaml)")

	// 2. 存储参数，绑定到 Viper
	// 这样用户既可以在 yaml 里写，也可以用命令行覆盖
	rootCmd.PersistentFlags().String("storage-path", "", "Directory to store objects")
	rootCmd.PersistentFlags().String("storage-type", "", "Storage backend: memory | disk | badger | sql | s3 | remote")
	for key, flag := range map[string]string{
		"storage.path": "storage-path",
		"storage.type": "storage-type",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
}
