package disk

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"gentle/pkg/core"
	"gentle/pkg/storage"
	"gentle/pkg/storage/storetest"
	"gentle/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.DataStore {
		s, err := New(t.TempDir(), Options{})
		require.NoError(t, err)
		return s
	})
}

func TestDiskStore_ConformanceCompressed(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.DataStore {
		s, err := New(t.TempDir(), Options{Compression: true, Level: 3})
		require.NoError(t, err)
		return s
	})
}

func TestDiskStore_Layout(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := New(tmpDir, Options{})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	// hash("hello") = 2cf24dba...
	h, err := s.ContentStore().Put(ctx, []byte("hello"))
	require.NoError(t, err)

	// 路径应该是 tmpDir/objects/2c/f24dba...
	expectedPath := filepath.Join(tmpDir, "objects", "2c", "f24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	_, err = os.Stat(expectedPath)
	assert.NoError(t, err, "文件应该存在于 Sharding 目录中")
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", string(h))
}

func TestDiskStore_Reopen(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	s, err := New(tmpDir, Options{Compression: true, Level: 2})
	require.NoError(t, err)
	payload := bytes.Repeat([]byte("persist "), 512)
	h, err := s.ContentStore().Put(ctx, payload)
	require.NoError(t, err)
	_, err = s.PointerStore().Put(ctx, "refs/heads/main", h)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// 关闭压缩重新打开，已压缩的数据依然可读
	s2, err := New(tmpDir, Options{})
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.ContentStore().Get(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	target, err := s2.PointerStore().Get(ctx, "refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, h, target)

	prev, err := s2.PointerStore().Put(ctx, "refs/heads/main", core.CalculateBlobHash([]byte("next")))
	require.NoError(t, err)
	assert.Equal(t, h, prev)
}

func TestDiskStore_TamperedObject(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := New(tmpDir, Options{})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	h, err := s.ContentStore().Put(ctx, []byte("original"))
	require.NoError(t, err)

	// 直接改写磁盘上的文件 (保留 raw 标记)
	path := layout(filepath.Join(tmpDir, objectsDir), string(h))
	require.NoError(t, os.WriteFile(path, append([]byte{0x00}, []byte("tampered")...), 0644))

	_, err = s.ContentStore().Get(ctx, h)
	assert.ErrorIs(t, err, storage.ErrIntegrityViolation)

	// 再次 Put 原始内容时发现不一致
	_, err = s.ContentStore().Put(ctx, []byte("original"))
	assert.ErrorIs(t, err, storage.ErrIntegrityViolation)
}

func TestDiskStore_Delete(t *testing.T) {
	s, err := New(t.TempDir(), Options{})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	h, err := s.ContentStore().Put(ctx, []byte("gone"))
	require.NoError(t, err)
	_, err = s.PointerStore().Put(ctx, "tmp", h)
	require.NoError(t, err)

	require.NoError(t, s.content.Delete(ctx, h))
	ok, err := s.ContentStore().Has(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, s.content.Delete(ctx, h), storage.ErrNotFound)

	require.NoError(t, s.pointers.Delete(ctx, "tmp"))
	assert.ErrorIs(t, s.pointers.Delete(ctx, "tmp"), storage.ErrNotFound)
}

func TestDiskStore_FindIgnoresTempFiles(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := New(tmpDir, Options{})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	h, err := s.ContentStore().Put(ctx, []byte("real"))
	require.NoError(t, err)

	// 模拟崩溃残留的临时文件
	shard := filepath.Join(tmpDir, objectsDir, string(h[:2]))
	require.NoError(t, os.WriteFile(filepath.Join(shard, tempPrefix+"123"), []byte("junk"), 0644))

	all, err := s.ContentStore().Find(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []types.Hash{h}, all)
}
