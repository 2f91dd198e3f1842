// Package refs 组合内容库和指针库：通过名字读写内容
package refs

import (
	"context"
	"fmt"

	"gentle/pkg/storage"
	"gentle/pkg/types"
)

// Manager 负责 "名字 -> 内容" 的两段式操作
// 两个库之间没有事务：Publish 写完内容、写指针之前崩溃，只会留下一个无人引用的内容
type Manager struct {
	ds storage.DataStore
}

func NewManager(ds storage.DataStore) *Manager {
	return &Manager{ds: ds}
}

// Resolve 读取指针指向的内容
// 指针存在但内容缺失 (悬空指针) 时返回 ErrNotFound
func (m *Manager) Resolve(ctx context.Context, pointer types.PointerID) ([]byte, types.Hash, error) {
	target, err := m.ds.PointerStore().Get(ctx, pointer)
	if err != nil {
		return nil, types.NoHash, err
	}
	data, err := m.ds.ContentStore().Get(ctx, target)
	if err != nil {
		return nil, target, fmt.Errorf("pointer %q -> %s: %w", pointer, target.Short(), err)
	}
	return data, target, nil
}

// Publish 先存内容，再移动指针
// 返回新内容的 Hash 和指针之前的值 (第一次创建时为 NoHash)
func (m *Manager) Publish(ctx context.Context, pointer types.PointerID, data []byte) (types.Hash, types.Hash, error) {
	// 指针名非法时不要留下孤儿内容
	if _, err := m.ds.PointerStore().Has(ctx, pointer); err != nil {
		return types.NoHash, types.NoHash, err
	}

	hash, err := m.ds.ContentStore().Put(ctx, data)
	if err != nil {
		return types.NoHash, types.NoHash, err
	}

	prev, err := m.ds.PointerStore().Put(ctx, pointer, hash)
	if err != nil {
		return hash, types.NoHash, fmt.Errorf("content %s stored but pointer update failed: %w", hash.Short(), err)
	}
	return hash, prev, nil
}
