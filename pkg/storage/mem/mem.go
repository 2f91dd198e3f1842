// Package mem 是纯内存后端，主要用于测试与 `--storage memory` 的临时会话
package mem

import (
	"context"
	"sync"

	"gentle/pkg/core"
	"gentle/pkg/ident"
	"gentle/pkg/storage"
	"gentle/pkg/types"
)

// ContentStore 内存版内容寻址库
type ContentStore struct {
	mu      sync.RWMutex
	objects map[types.Hash][]byte
}

var (
	_ storage.ContentStore             = (*ContentStore)(nil)
	_ storage.Deleter[types.Hash]      = (*ContentStore)(nil)
	_ storage.PointerStore             = (*PointerStore)(nil)
	_ storage.Deleter[types.PointerID] = (*PointerStore)(nil)
	_ storage.DataStore                = (*Store)(nil)
)

func NewContentStore() *ContentStore {
	return &ContentStore{objects: make(map[types.Hash][]byte)}
}

func (s *ContentStore) Put(ctx context.Context, data []byte) (types.Hash, error) {
	hash := core.CalculateBlobHash(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.objects[hash]; ok {
		return hash, storage.CheckIntegrity(hash, stored, data)
	}
	s.objects[hash] = core.Clone(data)
	return hash, nil
}

func (s *ContentStore) Get(ctx context.Context, hash types.Hash) ([]byte, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[hash]
	if !ok {
		return nil, storage.NotFound("content", string(hash))
	}
	return core.Clone(data), nil
}

func (s *ContentStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[hash]
	return ok, nil
}

func (s *ContentStore) Find(ctx context.Context, prefix string) ([]types.Hash, error) {
	s.mu.RLock()
	keys := make([]types.Hash, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	return storage.FilterPrefix(keys, prefix), nil
}

func (s *ContentStore) Delete(ctx context.Context, hash types.Hash) error {
	if err := ident.ValidateHash(hash); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[hash]; !ok {
		return storage.NotFound("content", string(hash))
	}
	delete(s.objects, hash)
	return nil
}

// PointerStore 内存版指针库
// 写锁覆盖 "读旧值 + 写新值"，保证每个指针的历史是线性的
type PointerStore struct {
	mu       sync.RWMutex
	pointers map[types.PointerID]types.Hash
}

func NewPointerStore() *PointerStore {
	return &PointerStore{pointers: make(map[types.PointerID]types.Hash)}
}

func (s *PointerStore) Put(ctx context.Context, pointer types.PointerID, content types.Hash) (types.Hash, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return types.NoHash, err
	}
	if err := ident.ValidateHash(content); err != nil {
		return types.NoHash, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.pointers[pointer] // 不存在时是零值 NoHash
	s.pointers[pointer] = content
	return prev, nil
}

func (s *PointerStore) Get(ctx context.Context, pointer types.PointerID) (types.Hash, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return types.NoHash, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	target, ok := s.pointers[pointer]
	if !ok {
		return types.NoHash, storage.NotFound("pointer", string(pointer))
	}
	return target, nil
}

func (s *PointerStore) Has(ctx context.Context, pointer types.PointerID) (bool, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pointers[pointer]
	return ok, nil
}

func (s *PointerStore) Find(ctx context.Context, prefix string) ([]types.PointerID, error) {
	s.mu.RLock()
	keys := make([]types.PointerID, 0, len(s.pointers))
	for k := range s.pointers {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	return storage.FilterPrefix(keys, prefix), nil
}

func (s *PointerStore) Delete(ctx context.Context, pointer types.PointerID) error {
	if err := ident.ValidatePointer(pointer); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pointers[pointer]; !ok {
		return storage.NotFound("pointer", string(pointer))
	}
	delete(s.pointers, pointer)
	return nil
}

// Store 把两个内存库组合成 DataStore
type Store struct {
	content  *ContentStore
	pointers *PointerStore
}

func New() *Store {
	return &Store{content: NewContentStore(), pointers: NewPointerStore()}
}

func (s *Store) ContentStore() storage.ContentStore { return s.content }
func (s *Store) PointerStore() storage.PointerStore { return s.pointers }
func (s *Store) Close() error                       { return nil }
