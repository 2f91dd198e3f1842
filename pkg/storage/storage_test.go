package storage_test

import (
	"context"
	"errors"
	"testing"

	"gentle/pkg/core"
	"gentle/pkg/storage"
	"gentle/pkg/storage/mem"
	"gentle/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundle_CloseOrder(t *testing.T) {
	var order []string
	closer := func(name string, err error) func() error {
		return func() error {
			order = append(order, name)
			return err
		}
	}
	boom := errors.New("boom")

	b := storage.NewBundle(mem.NewContentStore(), mem.NewPointerStore(),
		closer("first", nil), closer("second", boom))
	err := b.Close()

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"second", "first"}, order, "closers run in reverse")

	// 第二次 Close 不再调用
	require.NoError(t, b.Close())
	assert.Len(t, order, 2)
}

func TestCheckIntegrity(t *testing.T) {
	h := core.CalculateBlobHash([]byte("a"))
	assert.NoError(t, storage.CheckIntegrity(h, []byte("a"), []byte("a")))

	err := storage.CheckIntegrity(h, []byte("a"), []byte("b"))
	assert.ErrorIs(t, err, storage.ErrIntegrityViolation)

	var ie *storage.IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, h, ie.Hash)
}

func TestDelete_Unsupported(t *testing.T) {
	type readOnly struct{ storage.ContentStore }
	ro := readOnly{mem.NewContentStore()}

	err := storage.Delete(context.Background(), ro, core.CalculateBlobHash(nil))
	assert.ErrorIs(t, err, storage.ErrDeleteUnsupported)
}

func TestFilterPrefix(t *testing.T) {
	keys := []types.PointerID{"b/2", "a/1", "b/1", "c"}
	assert.Equal(t, []types.PointerID{"b/1", "b/2"}, storage.FilterPrefix(keys, "b/"))
	assert.Equal(t, []types.PointerID{"a/1", "b/1", "b/2", "c"}, storage.FilterPrefix(keys, ""))
	assert.Empty(t, storage.FilterPrefix(keys, "z"))
}

func TestExpandHash(t *testing.T) {
	ctx := context.Background()
	cs := mem.NewContentStore()

	var hashes []types.Hash
	for _, s := range []string{"one", "two", "three", "four", "five", "six", "seven", "eight"} {
		h, err := cs.Put(ctx, []byte(s))
		require.NoError(t, err)
		hashes = append(hashes, h)
	}

	// 唯一前缀
	full, err := storage.ExpandHash(ctx, cs, types.HashPrefix(hashes[0][:16]))
	require.NoError(t, err)
	assert.Equal(t, hashes[0], full)

	// 完整 Hash 不做查找
	missing := core.CalculateBlobHash([]byte("missing"))
	full, err = storage.ExpandHash(ctx, cs, types.HashPrefix(missing))
	require.NoError(t, err)
	assert.Equal(t, missing, full)

	// 没有匹配
	_, err = storage.ExpandHash(ctx, cs, types.HashPrefix(missing[:16]))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// 非法前缀
	_, err = storage.ExpandHash(ctx, cs, "XYZW")
	assert.ErrorIs(t, err, storage.ErrInvalidIdentifier)
}
