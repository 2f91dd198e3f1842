package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gentle/pkg/core"
	"gentle/pkg/ident"
	"gentle/pkg/storage"
	"gentle/pkg/types"

	"github.com/allegro/bigcache/v3"
)

// BlobCache 是进程内的内容缓存 (BigCache)
// 内容按 Hash 寻址且不可变，缓存永远不会读到旧值
type BlobCache struct {
	backend  storage.ContentStore
	cache    *bigcache.BigCache
	maxEntry int
}

var (
	_ storage.ContentStore        = (*BlobCache)(nil)
	_ storage.Deleter[types.Hash] = (*BlobCache)(nil)
)

type BlobCacheConfig struct {
	MaxMB      int           // 缓存总上限 (MB)，0 表示不限
	LifeWindow time.Duration // 条目存活时间
	MaxEntry   int           // 超过该大小的内容不缓存 (字节)
}

func NewBlobCache(backend storage.ContentStore, cfg BlobCacheConfig) (*BlobCache, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 10 * time.Minute
	}
	maxEntry := cfg.MaxEntry
	if maxEntry <= 0 {
		maxEntry = 1 << 20
	}

	bcfg := bigcache.DefaultConfig(life)
	bcfg.Shards = 64
	bcfg.HardMaxCacheSize = cfg.MaxMB
	bcfg.MaxEntrySize = 4096
	bcfg.CleanWindow = life / 2
	bcfg.Verbose = false

	c, err := bigcache.New(context.Background(), bcfg)
	if err != nil {
		return nil, fmt.Errorf("创建BigCache实例失败: %w", err)
	}
	return &BlobCache{backend: backend, cache: c, maxEntry: maxEntry}, nil
}

func (b *BlobCache) Put(ctx context.Context, data []byte) (types.Hash, error) {
	hash, err := b.backend.Put(ctx, data)
	if err != nil {
		return hash, err
	}
	b.fill(hash, data)
	return hash, nil
}

func (b *BlobCache) Get(ctx context.Context, hash types.Hash) ([]byte, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return nil, err
	}
	if v, err := b.cache.Get(string(hash)); err == nil {
		return core.Clone(v), nil
	}

	data, err := b.backend.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	b.fill(hash, data)
	return data, nil
}

func (b *BlobCache) Has(ctx context.Context, hash types.Hash) (bool, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return false, err
	}
	if _, err := b.cache.Get(string(hash)); err == nil {
		return true, nil
	}
	return b.backend.Has(ctx, hash)
}

func (b *BlobCache) Find(ctx context.Context, prefix string) ([]types.Hash, error) {
	return b.backend.Find(ctx, prefix)
}

func (b *BlobCache) Delete(ctx context.Context, hash types.Hash) error {
	if err := storage.Delete(ctx, b.backend, hash); err != nil {
		return err
	}
	if err := b.cache.Delete(string(hash)); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return err
	}
	return nil
}

// Stats 暴露命中率，供 metrics 与测试使用
func (b *BlobCache) Stats() bigcache.Stats {
	return b.cache.Stats()
}

func (b *BlobCache) Close() error {
	return b.cache.Close()
}

// fill 写缓存失败 (例如条目过大) 不是错误
func (b *BlobCache) fill(hash types.Hash, data []byte) {
	if len(data) > b.maxEntry {
		return
	}
	_ = b.cache.Set(string(hash), data)
}
