package lookup

import (
	"context"
	"testing"

	"gentle/pkg/storage"
	"gentle/pkg/storage/mem"
	"gentle/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hash("hello") = 2cf24dba...，hash("world") = 486ea462...
func setup(t *testing.T) (*Resolver, types.Hash, types.Hash) {
	t.Helper()
	ds := mem.New()
	ctx := context.Background()

	hello, err := ds.ContentStore().Put(ctx, []byte("hello"))
	require.NoError(t, err)
	world, err := ds.ContentStore().Put(ctx, []byte("world"))
	require.NoError(t, err)

	for _, p := range []types.PointerID{"latest", "run-1", "run-2"} {
		_, err := ds.PointerStore().Put(ctx, p, hello)
		require.NoError(t, err)
	}
	_, err = ds.PointerStore().Put(ctx, "latest", world)
	require.NoError(t, err)

	return NewResolver(ds), hello, world
}

func TestResolver_Expand(t *testing.T) {
	r, hello, world := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   string
		want    Item
		wantErr error
	}{
		{"Exact pointer", "latest", Item{KindPointer, "latest"}, nil},
		{"Pointer prefix", "lat", Item{KindPointer, "latest"}, nil},
		{"Full hash", string(hello), Item{KindContent, string(hello)}, nil},
		{"Hash prefix", "2cf24d", Item{KindContent, string(hello)}, nil},
		{"Other hash prefix", string(world[:5]), Item{KindContent, string(world)}, nil},
		{"Ambiguous pointers", "run-", Item{}, storage.ErrAmbiguousHash},
		{"Unknown full hash", "0000000000000000000000000000000000000000000000000000000000000000", Item{}, storage.ErrNotFound},
		{"No match", "zzz", Item{}, storage.ErrNotFound},
		{"Short hex ignored for content", "2cf", Item{}, storage.ErrNotFound},
		{"Empty", "", Item{}, storage.ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Expand(ctx, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_AmbiguousListsCandidates(t *testing.T) {
	r, _, _ := setup(t)

	_, err := r.Expand(context.Background(), "run")
	var ae *AmbiguousError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []Item{{KindPointer, "run-1"}, {KindPointer, "run-2"}}, ae.Candidates)
	assert.Contains(t, err.Error(), "pointer:run-1")
}

func TestResolver_HashNamedPointer(t *testing.T) {
	ds := mem.New()
	ctx := context.Background()
	r := NewResolver(ds)

	hello, err := ds.ContentStore().Put(ctx, []byte("hello"))
	require.NoError(t, err)
	world, err := ds.ContentStore().Put(ctx, []byte("world"))
	require.NoError(t, err)

	// 指针名恰好是一个不存在的内容 Hash：按指针解析
	random := types.PointerID("80834436d97b9327eb8138c907f57c205b3d7ba9a962d7cf72849993e909c299")
	_, err = ds.PointerStore().Put(ctx, random, hello)
	require.NoError(t, err)
	item, err := r.Expand(ctx, string(random))
	require.NoError(t, err)
	assert.Equal(t, Item{KindPointer, string(random)}, item)

	// 指针名与已存在的内容 Hash 相同：两个库都命中，报歧义
	_, err = ds.PointerStore().Put(ctx, types.PointerID(world), hello)
	require.NoError(t, err)
	_, err = r.Expand(ctx, string(world))
	var ae *AmbiguousError
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, storage.ErrAmbiguousHash)
	assert.Equal(t, []Item{{KindPointer, string(world)}, {KindContent, string(world)}}, ae.Candidates)
}

func TestResolver_Get(t *testing.T) {
	r, _, world := setup(t)
	ctx := context.Background()

	v, err := r.Get(ctx, "486e")
	require.NoError(t, err)
	assert.Equal(t, KindContent, v.Kind)
	assert.Equal(t, []byte("world"), v.Data)

	v, err = r.Get(ctx, "latest")
	require.NoError(t, err)
	assert.Equal(t, KindPointer, v.Kind)
	assert.Equal(t, world, v.Target)
	assert.Nil(t, v.Data)
}

func TestResolver_FindAndContains(t *testing.T) {
	r, hello, _ := setup(t)
	ctx := context.Background()

	items, err := r.Find(ctx, "")
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, KindPointer, items[0].Kind, "指针排在前面")

	ok, err := r.Contains(ctx, "run")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Contains(ctx, string(hello[:10]))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Contains(ctx, "nothing-here")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_ExpandContent(t *testing.T) {
	r, hello, _ := setup(t)
	ctx := context.Background()

	got, err := r.ExpandContent(ctx, "2cf24dba")
	require.NoError(t, err)
	assert.Equal(t, hello, got)

	// 指针名不会被当作内容
	_, err = r.ExpandContent(ctx, "latest")
	assert.ErrorIs(t, err, storage.ErrInvalidIdentifier)
}

func TestResolver_Remove(t *testing.T) {
	r, hello, _ := setup(t)
	ctx := context.Background()

	item, err := r.Remove(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, Item{KindPointer, "run-1"}, item)

	// 现在 "run" 只剩一个候选
	item, err = r.Expand(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, "run-2", item.ID)

	item, err = r.Remove(ctx, "2cf24d")
	require.NoError(t, err)
	assert.Equal(t, string(hello), item.ID)

	_, err = r.Get(ctx, string(hello))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
