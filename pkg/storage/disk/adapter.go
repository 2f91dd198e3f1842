package disk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gentle/pkg/compression"
	"gentle/pkg/core"
	"gentle/pkg/ident"
	"gentle/pkg/storage"
	"gentle/pkg/types"
)

const (
	objectsDir  = "objects"
	pointersDir = "pointers"
	tempPrefix  = "temp-"
)

// Options 磁盘后端配置
type Options struct {
	Compression bool
	Level       int // 1-3，见 compression.NewCompressor
}

// Store 是磁盘版 DataStore
// 目录结构:
//
//	root/objects/aa/bbcc...   内容 (带压缩标记)
//	root/pointers/dd/eeff...  指针记录 (CBOR)，文件名是指针名的 SHA-256
type Store struct {
	root     string
	content  *ContentStore
	pointers *PointerStore
	comp     *compression.Compressor
}

var (
	_ storage.DataStore                = (*Store)(nil)
	_ storage.ContentStore             = (*ContentStore)(nil)
	_ storage.PointerStore             = (*PointerStore)(nil)
	_ storage.Deleter[types.Hash]      = (*ContentStore)(nil)
	_ storage.Deleter[types.PointerID] = (*PointerStore)(nil)
)

// New 创建 (或打开) 位于 root 的磁盘存储
func New(root string, opts Options) (*Store, error) {
	for _, dir := range []string{objectsDir, pointersDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create root storage dir: %w", err)
		}
	}

	comp, err := compression.NewCompressor(opts.Level, opts.Compression)
	if err != nil {
		return nil, err
	}

	return &Store{
		root:     root,
		comp:     comp,
		content:  &ContentStore{root: filepath.Join(root, objectsDir), comp: comp},
		pointers: &PointerStore{root: filepath.Join(root, pointersDir), now: time.Now},
	}, nil
}

func (s *Store) Root() string                       { return s.root }
func (s *Store) ContentStore() storage.ContentStore { return s.content }
func (s *Store) PointerStore() storage.PointerStore { return s.pointers }
func (s *Store) Close() error                       { return s.comp.Close() }

// -----------------------------------------------------------------------------
// ContentStore
// -----------------------------------------------------------------------------

type ContentStore struct {
	root string
	comp *compression.Compressor
}

// layout 返回哈希对应的物理路径
// 策略：使用前 2 个字符作为子目录 (Sharding)
// Example: hash "aabbcc..." -> root/aa/bbcc...
func layout(root, hash string) string {
	return filepath.Join(root, hash[:2], hash[2:])
}

func (s *ContentStore) Put(ctx context.Context, data []byte) (types.Hash, error) {
	hash := core.CalculateBlobHash(data)
	targetPath := layout(s.root, string(hash))

	// 1. 已存在：逐字节比对，绝不覆盖
	if _, err := os.Stat(targetPath); err == nil {
		stored, err := s.read(targetPath)
		if err != nil {
			return hash, err
		}
		return hash, storage.CheckIntegrity(hash, stored, data)
	}

	// 2. 原子写入 (temp + rename)
	if err := writeAtomic(targetPath, s.comp.Compress(data)); err != nil {
		return hash, fmt.Errorf("failed to write object %s: %w", hash.Short(), err)
	}
	return hash, nil
}

func (s *ContentStore) Get(ctx context.Context, hash types.Hash) ([]byte, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return nil, err
	}

	targetPath := layout(s.root, string(hash))
	data, err := s.read(targetPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.NotFound("content", string(hash))
	}
	if err != nil {
		return nil, err
	}

	// 读路径校验：文件被篡改时不能悄悄返回错误的数据
	if !core.VerifyBlob(hash, data) {
		return nil, fmt.Errorf("%w: object file %s does not hash to its name", storage.ErrIntegrityViolation, targetPath)
	}
	return data, nil
}

func (s *ContentStore) read(path string) ([]byte, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := s.comp.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

func (s *ContentStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return false, err
	}
	return exists(layout(s.root, string(hash)))
}

// Find 只扫描与前缀匹配的分片目录
func (s *ContentStore) Find(ctx context.Context, prefix string) ([]types.Hash, error) {
	shards, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var out []types.Hash
	for _, shard := range shards {
		if !shard.IsDir() || !shardMatches(shard.Name(), prefix) {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.root, shard.Name()))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
				continue
			}
			h := types.Hash(shard.Name() + e.Name())
			if h.IsValid() && strings.HasPrefix(string(h), prefix) {
				out = append(out, h)
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *ContentStore) Delete(ctx context.Context, hash types.Hash) error {
	if err := ident.ValidateHash(hash); err != nil {
		return err
	}
	err := os.Remove(layout(s.root, string(hash)))
	if errors.Is(err, os.ErrNotExist) {
		return storage.NotFound("content", string(hash))
	}
	return err
}

// -----------------------------------------------------------------------------
// PointerStore
// -----------------------------------------------------------------------------

// PointerStore 的写操作在进程内串行化
// 同一目录不支持多个进程并发写
type PointerStore struct {
	root string
	now  func() time.Time
	mu   sync.Mutex
}

func (s *PointerStore) path(pointer types.PointerID) string {
	sum := sha256.Sum256([]byte(pointer))
	return layout(s.root, hex.EncodeToString(sum[:]))
}

func (s *PointerStore) load(pointer types.PointerID) (*core.PointerRecord, error) {
	data, err := os.ReadFile(s.path(pointer))
	if err != nil {
		return nil, err
	}
	rec, err := core.DecodePointerRecord(data)
	if err != nil {
		return nil, fmt.Errorf("pointer %q: %w", pointer, err)
	}
	return &rec, nil
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

	// 1. 读取旧记录
	prev, err := s.load(pointer)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return types.NoHash, err
	}

	// 2. 写入新记录
	next := core.NextPointerRecord(prev, pointer, content, s.now())
	data, err := core.EncodePointerRecord(next)
	if err != nil {
		return types.NoHash, err
	}
	if err := writeAtomic(s.path(pointer), data); err != nil {
		return types.NoHash, fmt.Errorf("failed to write pointer %q: %w", pointer, err)
	}

	if prev == nil {
		return types.NoHash, nil
	}
	return prev.Target, nil
}

func (s *PointerStore) Get(ctx context.Context, pointer types.PointerID) (types.Hash, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return types.NoHash, err
	}
	rec, err := s.load(pointer)
	if errors.Is(err, os.ErrNotExist) {
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
	return exists(s.path(pointer))
}

// Find 需要解码每条记录才能拿到指针名
func (s *PointerStore) Find(ctx context.Context, prefix string) ([]types.PointerID, error) {
	var out []types.PointerID
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rec, err := core.DecodePointerRecord(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if strings.HasPrefix(string(rec.Name), prefix) {
			out = append(out, rec.Name)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *PointerStore) Delete(ctx context.Context, pointer types.PointerID) error {
	if err := ident.ValidatePointer(pointer); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(pointer))
	if errors.Is(err, os.ErrNotExist) {
		return storage.NotFound("pointer", string(pointer))
	}
	return err
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

// writeAtomic 先写临时文件再 Rename
// 这样保证要么文件不存在，要么文件是完整的
func writeAtomic(targetPath string, data []byte) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	// 成功 Rename 之后这个删除是无害的
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil { // 必须先关闭才能 Rename
		return err
	}
	return os.Rename(tempFile.Name(), targetPath)
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func shardMatches(shard, prefix string) bool {
	if len(prefix) >= 2 {
		return shard == prefix[:2]
	}
	return strings.HasPrefix(shard, prefix)
}
