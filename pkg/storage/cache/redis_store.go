package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gentle/pkg/ident"
	"gentle/pkg/storage"
	"gentle/pkg/types"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedStore 是一个装饰器，它为底层的 ContentStore 添加 Redis 存在性缓存
// 内容不可变，所以 "存在" 这个事实可以安全地缓存 (Delete 会主动失效)
type CachedStore struct {
	backend storage.ContentStore // 被装饰的底层存储 (如 S3)
	client  *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
}

var (
	_ storage.ContentStore        = (*CachedStore)(nil)
	_ storage.Deleter[types.Hash] = (*CachedStore)(nil)
)

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
	Logger   *zap.Logger
}

func NewCachedStore(backend storage.ContentStore, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
		logger:  logger,
	}, nil
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey(hash types.Hash) string {
	return "gentle:obj:" + string(hash)
}

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return false, err
	}
	key := s.cacheKey(hash)

	// 1. 查 Redis；Redis 故障时降级为无缓存模式
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		s.logger.Warn("redis exists failed, falling back to backend", zap.Error(err))
	} else if val > 0 {
		return true, nil
	}

	// 2. 缓存未命中，查底层存储
	found, err := s.backend.Has(ctx, hash)
	if err != nil {
		return false, err
	}

	// 3. 缓存回填：异步写入，不阻塞主流程
	if found {
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.client.Set(fillCtx, key, "1", s.ttl)
		}()
	}
	return found, nil
}

// Put 总是穿透到底层：已存在的内容也要做字节比对
func (s *CachedStore) Put(ctx context.Context, data []byte) (types.Hash, error) {
	hash, err := s.backend.Put(ctx, data)
	if err != nil {
		return hash, err
	}

	// 只有底层写成功了才写 Redis，错误不影响主流程
	if err := s.client.Set(ctx, s.cacheKey(hash), "1", s.ttl).Err(); err != nil {
		s.logger.Warn("redis set failed", zap.String("hash", hash.Short()), zap.Error(err))
	}
	return hash, nil
}

// Get 透传，Blob 数据不进 Redis
// Redis 内存宝贵，只存元数据 (Existence) 性价比最高
func (s *CachedStore) Get(ctx context.Context, hash types.Hash) ([]byte, error) {
	data, err := s.backend.Get(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		// 底层已经没有了，清掉可能残留的存在性标记
		s.client.Del(ctx, s.cacheKey(hash))
	}
	return data, err
}

func (s *CachedStore) Find(ctx context.Context, prefix string) ([]types.Hash, error) {
	return s.backend.Find(ctx, prefix)
}

// Delete 需要底层支持 storage.Deleter
func (s *CachedStore) Delete(ctx context.Context, hash types.Hash) error {
	if err := storage.Delete(ctx, s.backend, hash); err != nil {
		return err
	}
	return s.client.Del(ctx, s.cacheKey(hash)).Err()
}

func (s *CachedStore) Close() error {
	return s.client.Close()
}
