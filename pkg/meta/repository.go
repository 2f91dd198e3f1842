package meta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gentle/pkg/core"
	"gentle/pkg/ident"
	"gentle/pkg/storage"
	"gentle/pkg/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 指针 CAS 的最大重试次数
const maxCASRetries = 64

// Repository 把 SQL 数据库暴露为 storage.DataStore
type Repository struct {
	db       *DB
	content  *ContentRepository
	pointers *PointerRepository
}

var (
	_ storage.DataStore                = (*Repository)(nil)
	_ storage.ContentStore             = (*ContentRepository)(nil)
	_ storage.PointerStore             = (*PointerRepository)(nil)
	_ storage.Deleter[types.Hash]      = (*ContentRepository)(nil)
	_ storage.Deleter[types.PointerID] = (*PointerRepository)(nil)
)

func NewRepository(db *DB) *Repository {
	return &Repository{
		db:       db,
		content:  &ContentRepository{db: db},
		pointers: &PointerRepository{db: db, now: time.Now},
	}
}

func (r *Repository) ContentStore() storage.ContentStore { return r.content }
func (r *Repository) PointerStore() storage.PointerStore { return r.pointers }
func (r *Repository) Close() error                       { return r.db.Close() }

// -----------------------------------------------------------------------------
// 1. 内容 (Contents)
// -----------------------------------------------------------------------------

type ContentRepository struct {
	db *DB
}

// Put 幂等写入：主键冲突时什么都不做，然后比对已有数据
func (r *ContentRepository) Put(ctx context.Context, data []byte) (types.Hash, error) {
	hash := core.CalculateBlobHash(data)
	model := ContentModel{
		Hash: string(hash),
		Data: core.Clone(data),
		Size: int64(len(data)),
	}

	result := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return hash, fmt.Errorf("failed to insert content: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return hash, nil
	}

	// 已存在
	stored, err := r.Get(ctx, hash)
	if err != nil {
		return hash, err
	}
	return hash, storage.CheckIntegrity(hash, stored, data)
}

func (r *ContentRepository) Get(ctx context.Context, hash types.Hash) ([]byte, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return nil, err
	}

	var rows []ContentModel
	err := r.db.GetConn().WithContext(ctx).
		Where("hash = ?", string(hash)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, storage.NotFound("content", string(hash))
	}
	return core.Clone(rows[0].Data), nil
}

func (r *ContentRepository) Has(ctx context.Context, hash types.Hash) (bool, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return false, err
	}
	var count int64
	err := r.db.GetConn().WithContext(ctx).
		Model(&ContentModel{}).
		Where("hash = ?", string(hash)).
		Count(&count).Error
	return count > 0, err
}

func (r *ContentRepository) Find(ctx context.Context, prefix string) ([]types.Hash, error) {
	var hashes []string
	err := r.db.GetConn().WithContext(ctx).
		Model(&ContentModel{}).
		Where("hash LIKE ? ESCAPE '\\'", likePrefix(prefix)).
		Order("hash").
		Pluck("hash", &hashes).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Hash, len(hashes))
	for i, h := range hashes {
		out[i] = types.Hash(h)
	}
	return storage.FilterPrefix(out, prefix), nil
}

func (r *ContentRepository) Delete(ctx context.Context, hash types.Hash) error {
	if err := ident.ValidateHash(hash); err != nil {
		return err
	}
	result := r.db.GetConn().WithContext(ctx).
		Where("hash = ?", string(hash)).
		Delete(&ContentModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.NotFound("content", string(hash))
	}
	return nil
}

// -----------------------------------------------------------------------------
// 2. 指针 (Pointers)
// -----------------------------------------------------------------------------

type PointerRepository struct {
	db  *DB
	now func() time.Time
}

// GetPointer 读取完整的指针行 (含版本号)
func (r *PointerRepository) GetPointer(ctx context.Context, name types.PointerID) (*PointerModel, error) {
	var rows []PointerModel
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", string(name)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, storage.NotFound("pointer", string(name))
	}
	return &rows[0], nil
}

// Put 读取当前版本然后 CAS 更新，失败时重读重试
// 因此每次成功的 Put 都恰好观察到它覆盖的那个值
func (r *PointerRepository) Put(ctx context.Context, pointer types.PointerID, content types.Hash) (types.Hash, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return types.NoHash, err
	}
	if err := ident.ValidateHash(content); err != nil {
		return types.NoHash, err
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return types.NoHash, err
		}

		current, err := r.GetPointer(ctx, pointer)
		if errors.Is(err, storage.ErrNotFound) {
			err = r.create(ctx, pointer, content)
			if errors.Is(err, storage.ErrConcurrentUpdate) {
				continue
			}
			return types.NoHash, err
		}
		if err != nil {
			return types.NoHash, err
		}

		err = r.UpdatePointer(ctx, pointer, content, current.Version)
		if errors.Is(err, storage.ErrConcurrentUpdate) {
			continue
		}
		if err != nil {
			return types.NoHash, err
		}
		return types.Hash(current.Target), nil
	}
	return types.NoHash, storage.ErrConcurrentUpdate
}

// 场景 A: 第一次创建 (Create)
func (r *PointerRepository) create(ctx context.Context, pointer types.PointerID, content types.Hash) error {
	model := PointerModel{
		Name:      string(pointer),
		Target:    string(content),
		Version:   1,
		UpdatedAt: r.now(),
	}
	if err := r.db.GetConn().WithContext(ctx).Create(&model).Error; err != nil {
		// 如果已经存在 (Name 冲突)，说明有人抢先创建了
		if isDuplicateKey(err) {
			return storage.ErrConcurrentUpdate
		}
		return fmt.Errorf("failed to create pointer: %w", err)
	}
	return nil
}

// UpdatePointer 原子更新指针 (CAS - Compare And Swap)
// oldVersion: 之前读到的版本号。数据库里的版本号不等于它时返回 ErrConcurrentUpdate
func (r *PointerRepository) UpdatePointer(ctx context.Context, pointer types.PointerID, content types.Hash, oldVersion int64) error {
	// SQL: UPDATE pointers SET target = ?, version = version + 1 WHERE name = ? AND version = ?
	result := r.db.GetConn().WithContext(ctx).
		Model(&PointerModel{}).
		Where("name = ? AND version = ?", string(pointer), oldVersion).
		Updates(map[string]any{
			"target":     string(content),
			"version":    gorm.Expr("version + 1"),
			"updated_at": r.now(),
		})
	if result.Error != nil {
		return result.Error
	}

	// 影响行数为 0，说明 version 不匹配（被人抢先改了）
	if result.RowsAffected == 0 {
		return storage.ErrConcurrentUpdate
	}
	return nil
}

func (r *PointerRepository) Get(ctx context.Context, pointer types.PointerID) (types.Hash, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return types.NoHash, err
	}
	row, err := r.GetPointer(ctx, pointer)
	if err != nil {
		return types.NoHash, err
	}
	return types.Hash(row.Target), nil
}

func (r *PointerRepository) Has(ctx context.Context, pointer types.PointerID) (bool, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return false, err
	}
	var count int64
	err := r.db.GetConn().WithContext(ctx).
		Model(&PointerModel{}).
		Where("name = ?", string(pointer)).
		Count(&count).Error
	return count > 0, err
}

// Find SQLite 的 LIKE 不区分大小写，结果在内存里再精确过滤一次
func (r *PointerRepository) Find(ctx context.Context, prefix string) ([]types.PointerID, error) {
	var names []string
	err := r.db.GetConn().WithContext(ctx).
		Model(&PointerModel{}).
		Where("name LIKE ? ESCAPE '\\'", likePrefix(prefix)).
		Order("name").
		Pluck("name", &names).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.PointerID, len(names))
	for i, n := range names {
		out[i] = types.PointerID(n)
	}
	return storage.FilterPrefix(out, prefix), nil
}

func (r *PointerRepository) Delete(ctx context.Context, pointer types.PointerID) error {
	if err := ident.ValidatePointer(pointer); err != nil {
		return err
	}
	result := r.db.GetConn().WithContext(ctx).
		Where("name = ?", string(pointer)).
		Delete(&PointerModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.NotFound("pointer", string(pointer))
	}
	return nil
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

// likePrefix 转义 LIKE 通配符 (指针名允许 '_')
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// 兼容性，处理不同数据库 (PG 与 SQLite) 的唯一约束错误
func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key value")
}
