package app

import (
	"context"
	"fmt"
	"path/filepath"

	"gentle/pkg/client"
	"gentle/pkg/importer"
	"gentle/pkg/logging"
	"gentle/pkg/lookup"
	"gentle/pkg/meta"
	"gentle/pkg/refs"
	"gentle/pkg/storage"
	"gentle/pkg/storage/badger"
	"gentle/pkg/storage/cache"
	"gentle/pkg/storage/disk"
	storelog "gentle/pkg/storage/logging"
	"gentle/pkg/storage/mem"
	"gentle/pkg/storage/metrics"
	"gentle/pkg/storage/s3"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务
type App struct {
	Store    storage.DataStore
	Refs     *refs.Manager
	Resolver *lookup.Resolver
	Importer *importer.Importer
	Logger   *zap.Logger

	// Metrics 仅在 NewApp 传入 Registerer 时非空
	Metrics *metrics.Collector
}

// Option 调整组装过程，主要给服务端和测试用
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	logger     *zap.Logger
}

// WithMetrics 把存储层指标注册到 reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithLogger 使用现成的 Logger，不再根据 log.* 配置创建
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	// 1. Logger
	logger := o.logger
	if logger == nil {
		l, err := logging.New(logConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to init logger: %w", err)
		}
		logger = l
	}

	// 2. 存储层 (Dependency Injection)
	store, err := initStore(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	// 3. 装饰器：缓存 -> 指标 -> 日志 (由内到外)
	store, err = withCaches(store, logger)
	if err != nil {
		return nil, err
	}
	var collector *metrics.Collector
	if o.registerer != nil {
		collector = metrics.NewCollector(o.registerer)
		store = metrics.Wrap(store, collector)
	}
	store = storelog.New(store, logger.Named("store"))

	return &App{
		Store:    store,
		Refs:     refs.NewManager(store),
		Resolver: lookup.NewResolver(store),
		Importer: importer.New(store, importer.WithLogger(logger.Named("import"))),
		Logger:   logger,
		Metrics:  collector,
	}, nil
}

// Close 释放存储后端并刷新日志
func (a *App) Close() error {
	err := a.Store.Close()
	_ = a.Logger.Sync()
	return err
}

func logConfig() logging.Config {
	return logging.Config{
		Level:      viper.GetString("log.level"),
		Format:     viper.GetString("log.format"),
		Output:     viper.GetString("log.output"),
		File:       viper.GetString("log.file"),
		MaxSizeMB:  viper.GetInt("log.max_size_mb"),
		MaxBackups: viper.GetInt("log.max_backups"),
		MaxAgeDays: viper.GetInt("log.max_age_days"),
		Compress:   viper.GetBool("log.compress"),
	}
}

// initStore 根据 storage.type 创建后端
// storage.pointers 非空且不同时，指针单独放在另一个后端上 (例如 S3 存内容 + SQL 存指针)
func initStore(ctx context.Context, logger *zap.Logger) (storage.DataStore, error) {
	contentType := viper.GetString("storage.type")
	pointerType := viper.GetString("storage.pointers")

	primary, err := openBackend(ctx, contentType, logger)
	if err != nil {
		return nil, err
	}
	if pointerType == "" || pointerType == contentType {
		return primary, nil
	}

	secondary, err := openBackend(ctx, pointerType, logger)
	if err != nil {
		_ = primary.Close()
		return nil, err
	}
	return storage.NewBundle(primary.ContentStore(), secondary.PointerStore(), primary.Close, secondary.Close), nil
}

func openBackend(ctx context.Context, kind string, logger *zap.Logger) (storage.DataStore, error) {
	root := viper.GetString("storage.path")

	switch kind {
	case "memory":
		return mem.New(), nil

	case "disk":
		if root == "" {
			return nil, fmt.Errorf("storage path not set")
		}
		return disk.New(root, disk.Options{
			Compression: viper.GetBool("storage.compression"),
			Level:       viper.GetInt("storage.compression_level"),
		})

	case "badger":
		if root == "" {
			return nil, fmt.Errorf("storage path not set")
		}
		return badger.Open(badger.Options{
			Path:   filepath.Join(root, "badger"),
			Logger: logger.Named("badger"),
		})

	case "sql":
		cfg := meta.Config{
			Driver:   viper.GetString("database.driver"),
			Host:     viper.GetString("database.host"),
			Port:     viper.GetInt("database.port"),
			User:     viper.GetString("database.user"),
			Password: viper.GetString("database.password"),
			DBName:   viper.GetString("database.dbname"),
			SSLMode:  viper.GetString("database.sslmode"),
			Path:     viper.GetString("database.path"),
			LogSQL:   viper.GetBool("database.log_sql"),
		}
		if cfg.Driver == "sqlite" && cfg.Path == "" {
			if root == "" {
				return nil, fmt.Errorf("database.path or storage.path is required for sqlite")
			}
			cfg.Path = filepath.Join(root, "gentle.db")
		}
		db, err := meta.NewDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return meta.NewRepository(db), nil

	case "s3":
		bucket := viper.GetString("s3.bucket")
		if bucket == "" {
			return nil, fmt.Errorf("s3 bucket is required")
		}
		return s3.New(ctx, s3.Config{
			Endpoint:        viper.GetString("s3.endpoint"),
			Region:          viper.GetString("s3.region"),
			Bucket:          bucket,
			AccessKeyID:     viper.GetString("s3.access_key"),
			SecretAccessKey: viper.GetString("s3.secret_key"),
			KeyPrefix:       viper.GetString("s3.prefix"),
			Logger:          logger.Named("s3"),
		})

	case "remote":
		return client.New(viper.GetString("remote.addr"),
			client.WithTimeout(viper.GetDuration("remote.timeout")))

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", kind)
	}
}

// withCaches 在内容库外面依次套上进程内缓存 (bigcache) 和 Redis 存在性缓存
func withCaches(ds storage.DataStore, logger *zap.Logger) (storage.DataStore, error) {
	content := ds.ContentStore()
	closers := []func() error{ds.Close}
	wrapped := false

	if mb := viper.GetInt("cache.memory_mb"); mb > 0 {
		bc, err := cache.NewBlobCache(content, cache.BlobCacheConfig{MaxMB: mb})
		if err != nil {
			_ = ds.Close()
			return nil, err
		}
		content, wrapped = bc, true
		closers = append(closers, bc.Close)
	}

	if url := viper.GetString("cache.redis_url"); url != "" {
		cs, err := cache.NewCachedStore(content, cache.Config{
			RedisURL: url,
			TTL:      viper.GetDuration("cache.ttl"),
			Logger:   logger.Named("cache"),
		})
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
			return nil, err
		}
		content, wrapped = cs, true
		closers = append(closers, cs.Close)
	}

	if !wrapped {
		return ds, nil
	}
	return storage.NewBundle(content, ds.PointerStore(), closers...), nil
}
