package cache

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"gentle/pkg/storage"
	"gentle/pkg/storage/mem"
	"gentle/pkg/storage/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBlobCache(t *testing.T, backend storage.ContentStore) *BlobCache {
	t.Helper()
	bc, err := NewBlobCache(backend, BlobCacheConfig{MaxMB: 8, LifeWindow: time.Minute, MaxEntry: 1024})
	require.NoError(t, err)
	return bc
}

func TestBlobCache_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.DataStore {
		bc := newTestBlobCache(t, mem.NewContentStore())
		return storage.NewBundle(bc, mem.NewPointerStore(), bc.Close)
	})
}

func TestBlobCache_ServesFromMemory(t *testing.T) {
	ctx := context.Background()
	spy := NewSpyStore()
	bc := newTestBlobCache(t, spy)
	defer bc.Close()

	h, err := bc.Put(ctx, []byte("cached"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := bc.Get(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, []byte("cached"), got)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&spy.getCount), "Put 之后的读取应全部命中缓存")
	assert.Equal(t, int64(3), bc.Stats().Hits)

	// 修改返回值不影响缓存
	got, err := bc.Get(ctx, h)
	require.NoError(t, err)
	got[0] = 'X'
	again, err := bc.Get(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), again)
}

func TestBlobCache_SkipsLargeEntries(t *testing.T) {
	ctx := context.Background()
	spy := NewSpyStore()
	bc := newTestBlobCache(t, spy)
	defer bc.Close()

	big := bytes.Repeat([]byte("L"), 4096)
	h, err := bc.Put(ctx, big)
	require.NoError(t, err)

	got, err := bc.Get(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, big, got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.getCount), "大对象不缓存，读取穿透到底层")
}

func TestBlobCache_DeleteEvicts(t *testing.T) {
	ctx := context.Background()
	bc := newTestBlobCache(t, mem.NewContentStore())
	defer bc.Close()

	h, err := bc.Put(ctx, []byte("evict me"))
	require.NoError(t, err)
	require.NoError(t, bc.Delete(ctx, h))

	_, err = bc.Get(ctx, h)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
