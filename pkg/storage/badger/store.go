// Package badger 提供基于 BadgerDB 的嵌入式 DataStore
// 内容和指针共用一个数据库，用 Key 前缀区分
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gentle/pkg/core"
	"gentle/pkg/ident"
	"gentle/pkg/storage"
	"gentle/pkg/types"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

const (
	contentPrefix = "c/"
	pointerPrefix = "p/"

	// 事务冲突的最大重试次数
	maxConflictRetries = 64
)

// Options BadgerDB 配置
type Options struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *zap.Logger
}

// Store 实现 storage.DataStore
type Store struct {
	db       *badgerdb.DB
	content  *ContentStore
	pointers *PointerStore
}

var (
	_ storage.DataStore                = (*Store)(nil)
	_ storage.ContentStore             = (*ContentStore)(nil)
	_ storage.PointerStore             = (*PointerStore)(nil)
	_ storage.Deleter[types.Hash]      = (*ContentStore)(nil)
	_ storage.Deleter[types.PointerID] = (*PointerStore)(nil)
)

// Open 打开 (或创建) BadgerDB
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var bopts badgerdb.Options
	if opts.InMemory {
		bopts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("badger: path is required")
		}
		if err := os.MkdirAll(opts.Path, 0700); err != nil {
			return nil, fmt.Errorf("无法创建BadgerDB数据目录: %w", err)
		}
		bopts = badgerdb.DefaultOptions(opts.Path)
	}
	bopts.SyncWrites = opts.SyncWrites
	// 内容寻址的数据以小对象为主，缩小缓存避免 RSS 过高
	bopts.BlockCacheSize = 32 << 20
	bopts.IndexCacheSize = 16 << 20
	bopts.NumMemtables = 2
	bopts.Logger = &badgerLogger{s: logger.Named("badger").Sugar()}

	db, err := badgerdb.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger open failed: %w", err)
	}

	return &Store{
		db:       db,
		content:  &ContentStore{db: db},
		pointers: &PointerStore{db: db, now: time.Now},
	}, nil
}

func (s *Store) ContentStore() storage.ContentStore { return s.content }
func (s *Store) PointerStore() storage.PointerStore { return s.pointers }
func (s *Store) Close() error                       { return s.db.Close() }

// -----------------------------------------------------------------------------
// ContentStore
// -----------------------------------------------------------------------------

type ContentStore struct {
	db *badgerdb.DB
}

func contentKey(h types.Hash) []byte { return []byte(contentPrefix + string(h)) }

func (s *ContentStore) Put(ctx context.Context, data []byte) (types.Hash, error) {
	hash := core.CalculateBlobHash(data)
	key := contentKey(hash)

	err := update(s.db, func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err == nil {
			// 已存在：比对而不是覆盖
			stored, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			return storage.CheckIntegrity(hash, stored, data)
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, core.Clone(data))
	})
	if err != nil {
		return hash, err
	}
	return hash, nil
}

func (s *ContentStore) Get(ctx context.Context, hash types.Hash) ([]byte, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return nil, err
	}

	var valCopy []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(contentKey(hash))
		if err != nil {
			return err
		}
		valCopy, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, storage.NotFound("content", string(hash))
	}
	if err != nil {
		return nil, fmt.Errorf("badger get failed: %w", err)
	}
	// ValueCopy(nil) 对空值返回 nil
	return core.Clone(valCopy), nil
}

func (s *ContentStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return false, err
	}
	return exists(s.db, contentKey(hash))
}

func (s *ContentStore) Find(ctx context.Context, prefix string) ([]types.Hash, error) {
	keys, err := scanKeys(s.db, contentPrefix, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]types.Hash, len(keys))
	for i, k := range keys {
		out[i] = types.Hash(k)
	}
	return out, nil
}

func (s *ContentStore) Delete(ctx context.Context, hash types.Hash) error {
	if err := ident.ValidateHash(hash); err != nil {
		return err
	}
	return deleteKey(s.db, contentKey(hash), "content", string(hash))
}

// -----------------------------------------------------------------------------
// PointerStore
// -----------------------------------------------------------------------------

// PointerStore 依赖 Badger 的乐观事务 (SSI)：
// 读旧值和写新值在同一事务里，冲突时整体重试
type PointerStore struct {
	db  *badgerdb.DB
	now func() time.Time
}

func pointerKey(p types.PointerID) []byte { return []byte(pointerPrefix + string(p)) }

func (s *PointerStore) Put(ctx context.Context, pointer types.PointerID, content types.Hash) (types.Hash, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return types.NoHash, err
	}
	if err := ident.ValidateHash(content); err != nil {
		return types.NoHash, err
	}

	key := pointerKey(pointer)
	var prev types.Hash
	err := update(s.db, func(txn *badgerdb.Txn) error {
		prev = types.NoHash

		old, err := readRecord(txn, key)
		if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		if old != nil {
			prev = old.Target
		}

		next := core.NextPointerRecord(old, pointer, content, s.now())
		data, err := core.EncodePointerRecord(next)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return types.NoHash, err
	}
	return prev, nil
}

func (s *PointerStore) Get(ctx context.Context, pointer types.PointerID) (types.Hash, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return types.NoHash, err
	}

	var rec *core.PointerRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		rec, err = readRecord(txn, pointerKey(pointer))
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return types.NoHash, storage.NotFound("pointer", string(pointer))
	}
	if err != nil {
		return types.NoHash, err
	}
	return rec.Target, nil
}

func (s *PointerStore) Has(ctx context.Context, pointer types.PointerID) (bool, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return false, err
	}
	return exists(s.db, pointerKey(pointer))
}

func (s *PointerStore) Find(ctx context.Context, prefix string) ([]types.PointerID, error) {
	keys, err := scanKeys(s.db, pointerPrefix, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]types.PointerID, len(keys))
	for i, k := range keys {
		out[i] = types.PointerID(k)
	}
	return out, nil
}

func (s *PointerStore) Delete(ctx context.Context, pointer types.PointerID) error {
	if err := ident.ValidatePointer(pointer); err != nil {
		return err
	}
	return deleteKey(s.db, pointerKey(pointer), "pointer", string(pointer))
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

// update 执行读写事务，遇到 ErrConflict 时重试
func update(db *badgerdb.DB, fn func(txn *badgerdb.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
	}
	return storage.ErrConcurrentUpdate
}

func readRecord(txn *badgerdb.Txn, key []byte) (*core.PointerRecord, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var rec core.PointerRecord
	err = item.Value(func(val []byte) error {
		rec, err = core.DecodePointerRecord(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func exists(db *badgerdb.DB, key []byte) (bool, error) {
	var found bool
	err := db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger exists failed: %w", err)
	}
	return found, nil
}

// scanKeys 按前缀只扫描 Key (不预取 Value)，结果天然有序
func scanKeys(db *badgerdb.DB, namespace, prefix string) ([]string, error) {
	full := []byte(namespace + prefix)
	var out []string
	err := db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = full

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(full); it.ValidForPrefix(full); it.Next() {
			out = append(out, string(it.Item().Key()[len(namespace):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger prefix scan failed: %w", err)
	}
	return out, nil
}

func deleteKey(db *badgerdb.DB, key []byte, kind, id string) error {
	return update(db, func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return storage.NotFound(kind, id)
			}
			return err
		}
		return txn.Delete(key)
	})
}

// badgerLogger 把 Badger 的日志接到 zap
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{})   { l.s.Errorf(f, v...) }
func (l *badgerLogger) Warningf(f string, v ...interface{}) { l.s.Warnf(f, v...) }
func (l *badgerLogger) Infof(f string, v ...interface{})    { l.s.Debugf(f, v...) }
func (l *badgerLogger) Debugf(f string, v ...interface{})   { l.s.Debugf(f, v...) }
