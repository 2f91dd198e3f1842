package storage

import (
	"context"
	"fmt"

	"gentle/pkg/types"
)

// DB 是两个数据库共享的最小能力集合：按 Key 读取、存在性检查、前缀查找
// Key 在任何查找之前都会先通过对应语法的校验
type DB[K ~string, V any] interface {
	// Get 读取 Key 对应的值
	// 校验失败返回 ErrInvalidIdentifier，不存在返回 ErrNotFound
	Get(ctx context.Context, key K) (V, error)

	// Has 检查 Key 是否存在
	Has(ctx context.Context, key K) (bool, error)

	// Find 返回所有以 prefix 开头的 Key (字典序)
	// 空 prefix 列出全部
	Find(ctx context.Context, prefix string) ([]K, error)
}

// ContentStore 是内容寻址数据库：Key 由内容本身计算得出
// Implementations can be memory, local disk, SQL, Badger, or S3.
type ContentStore interface {
	DB[types.Hash, []byte]

	// Put 计算内容的 Hash 并存储 (如果尚不存在)
	// 已存在时逐字节比对，不一致返回 ErrIntegrityViolation，绝不覆盖
	Put(ctx context.Context, data []byte) (types.Hash, error)
}

// PointerStore 是可变的命名引用数据库
type PointerStore interface {
	DB[types.PointerID, types.Hash]

	// Put 创建或覆盖指针，返回覆盖之前的值
	// 第一次创建时返回 types.NoHash
	Put(ctx context.Context, pointer types.PointerID, content types.Hash) (types.Hash, error)
}

// DataStore 把同一个后端上的两个数据库组合在一起
// 两个访问器在 DataStore 生命周期内总是返回同一个实例
type DataStore interface {
	ContentStore() ContentStore
	PointerStore() PointerStore
	Close() error
}

// Deleter 是后端扩展：不属于核心契约，按需通过类型断言使用
type Deleter[K ~string] interface {
	Delete(ctx context.Context, key K) error
}

// Delete 对实现了 Deleter 的 store 执行删除，否则返回 ErrDeleteUnsupported
func Delete[K ~string](ctx context.Context, db any, key K) error {
	d, ok := db.(Deleter[K])
	if !ok {
		return fmt.Errorf("%w: %T", ErrDeleteUnsupported, db)
	}
	return d.Delete(ctx, key)
}
