package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix 所有环境变量的前缀：GENTLE_STORAGE_TYPE, GENTLE_DATABASE_HOST ...
	EnvPrefix = "GENTLE"

	// DirName 仓库数据目录，也是配置文件的搜索位置之一
	DirName = ".gentle"

	// LegacyDirEnv 历史遗留的数据目录变量，作为 storage.path 的别名
	LegacyDirEnv = "GENTLE_TP_DA92_DIR"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .gentle
		viper.AddConfigPath(DirName)
		// 3. 用户主目录下的 .gentle
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, DirName))
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (GENTLE_DATABASE_HOST 等)
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// 显式绑定的变量名不会再加前缀，新名字优先
	if err := viper.BindEnv("storage.path", EnvPrefix+"_STORAGE_PATH", LegacyDirEnv); err != nil {
		return err
	}

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件时仍然可以只靠默认值和环境变量工作
		// 但如果是配置文件格式错，那就是错
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}
	return nil
}

// Used 返回实际加载的配置文件，没有则为空
func Used() string {
	return viper.ConfigFileUsed()
}

func setDefaults() {
	// 存储默认值
	wd, _ := os.Getwd()
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", filepath.Join(wd, DirName))
	viper.SetDefault("storage.pointers", "") // 为空时指针与内容使用同一个后端
	viper.SetDefault("storage.compression", false)
	viper.SetDefault("storage.compression_level", 2)

	// 数据库默认值
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.path", "") // sqlite：为空时放在 storage.path 下
	viper.SetDefault("database.log_sql", false)

	// S3
	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("s3.prefix", "")

	// 缓存：redis_url 为空 / memory_mb 为 0 表示不启用
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.memory_mb", 0)

	// 日志
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stderr")
	viper.SetDefault("log.file", "")

	// 服务端 / 远程后端
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.metrics_addr", ":9090")
	viper.SetDefault("remote.addr", "localhost:8080")
	viper.SetDefault("remote.timeout", "30s")
}
