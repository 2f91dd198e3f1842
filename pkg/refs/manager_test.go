package refs

import (
	"context"
	"testing"

	"gentle/pkg/core"
	"gentle/pkg/storage"
	"gentle/pkg/storage/mem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_PublishResolve(t *testing.T) {
	ds := mem.New()
	mgr := NewManager(ds)
	ctx := context.Background()

	// 1. 空仓库
	_, _, err := mgr.Resolve(ctx, "latest")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// 2. 第一次发布
	h1, prev, err := mgr.Publish(ctx, "latest", []byte("hello"))
	require.NoError(t, err)
	assert.True(t, prev.IsZero(), "第一次发布没有旧值")

	data, target, err := mgr.Resolve(ctx, "latest")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, h1, target)

	// 3. 第二次发布
	h2, prev, err := mgr.Publish(ctx, "latest", []byte("world"))
	require.NoError(t, err)
	assert.Equal(t, h1, prev)

	data, target, err = mgr.Resolve(ctx, "latest")
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), data)
	assert.Equal(t, h2, target)
}

func TestManager_PublishInvalidPointerLeavesNoContent(t *testing.T) {
	ds := mem.New()
	mgr := NewManager(ds)
	ctx := context.Background()

	_, _, err := mgr.Publish(ctx, "../bad", []byte("orphan?"))
	assert.ErrorIs(t, err, storage.ErrInvalidIdentifier)

	all, err := ds.ContentStore().Find(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestManager_ResolveDangling(t *testing.T) {
	ds := mem.New()
	mgr := NewManager(ds)
	ctx := context.Background()

	missing := core.CalculateBlobHash([]byte("never stored"))
	_, err := ds.PointerStore().Put(ctx, "dangling", missing)
	require.NoError(t, err)

	_, target, err := mgr.Resolve(ctx, "dangling")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, missing, target)
}
