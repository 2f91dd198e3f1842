// Package storetest is a conformance suite for storage.DataStore
// implementations. Every backend runs it from its own _test.go file.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"gentle/pkg/core"
	"gentle/pkg/ident"
	"gentle/pkg/storage"
	"gentle/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory 为每个子测试创建一个全新的、空的 DataStore
type Factory func(t *testing.T) storage.DataStore

// Options 控制可选用例
type Options struct {
	// Workers 并发用例的 goroutine 数量
	Workers int
}

// Run 执行完整的一致性测试
func Run(t *testing.T, newStore Factory, opts ...Options) {
	o := Options{Workers: 16}
	if len(opts) > 0 && opts[0].Workers > 0 {
		o.Workers = opts[0].Workers
	}

	open := func(t *testing.T) storage.DataStore {
		t.Helper()
		ds := newStore(t)
		require.NotNil(t, ds)
		t.Cleanup(func() { _ = ds.Close() })
		return ds
	}

	t.Run("Accessors", func(t *testing.T) { testAccessors(t, open(t)) })
	t.Run("ContentDeterminism", func(t *testing.T) { testContentDeterminism(t, open(t)) })
	t.Run("ContentRoundTrip", func(t *testing.T) { testContentRoundTrip(t, open(t)) })
	t.Run("ContentIdempotence", func(t *testing.T) { testContentIdempotence(t, open(t)) })
	t.Run("ContentGetErrors", func(t *testing.T) { testContentGetErrors(t, open(t)) })
	t.Run("ContentFind", func(t *testing.T) { testContentFind(t, open(t)) })
	t.Run("PointerOverwrite", func(t *testing.T) { testPointerOverwrite(t, open(t)) })
	t.Run("PointerErrors", func(t *testing.T) { testPointerErrors(t, open(t)) })
	t.Run("PointerFind", func(t *testing.T) { testPointerFind(t, open(t)) })
	t.Run("Scenario", func(t *testing.T) { testScenario(t, open(t)) })
	t.Run("ConcurrentContentPut", func(t *testing.T) { testConcurrentContentPut(t, open(t), o.Workers) })
	t.Run("ConcurrentPointerPut", func(t *testing.T) { testConcurrentPointerPut(t, open(t), o.Workers) })
}

func testAccessors(t *testing.T, ds storage.DataStore) {
	assert.Same(t, ds.ContentStore(), ds.ContentStore(), "ContentStore() 必须返回同一实例")
	assert.Same(t, ds.PointerStore(), ds.PointerStore(), "PointerStore() 必须返回同一实例")
}

func testContentDeterminism(t *testing.T, ds storage.DataStore) {
	ctx := context.Background()
	cs := ds.ContentStore()

	c1 := []byte("same bytes")
	c2 := []byte("same bytes") // 不同切片，相同内容

	h1, err := cs.Put(ctx, c1)
	require.NoError(t, err)
	h2, err := cs.Put(ctx, c2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "相同内容必须得到相同标识符")
	assert.Equal(t, core.CalculateBlobHash(c1), h1)

	h3, err := cs.Put(ctx, []byte("same bytes!"))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3, "不同内容必须得到不同标识符")
}

func testContentRoundTrip(t *testing.T, ds storage.DataStore) {
	ctx := context.Background()
	cs := ds.ContentStore()

	inputs := [][]byte{
		[]byte("hello"),
		{},
		{0x00, 0xff, 0x00, 0x10},
		[]byte(strings.Repeat("large payload ", 4096)),
	}
	for i, in := range inputs {
		h, err := cs.Put(ctx, in)
		require.NoError(t, err, "input #%d", i)

		got, err := cs.Get(ctx, h)
		require.NoError(t, err, "input #%d", i)
		assert.Equal(t, len(in), len(got), "input #%d", i)
		assert.True(t, core.SameContent(in, got), "input #%d must round-trip byte-exact", i)
	}

	// 返回的是副本：修改它不能影响存储
	h, err := cs.Put(ctx, []byte("immutable"))
	require.NoError(t, err)
	got, err := cs.Get(ctx, h)
	require.NoError(t, err)
	got[0] = 'X'
	again, err := cs.Get(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, []byte("immutable"), again)

	// 调用方在 Put 之后修改自己的切片也不影响存储
	buf := []byte("caller owned")
	h, err = cs.Put(ctx, buf)
	require.NoError(t, err)
	buf[0] = 'X'
	again, err = cs.Get(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, []byte("caller owned"), again)
}

func testContentIdempotence(t *testing.T, ds storage.DataStore) {
	ctx := context.Background()
	cs := ds.ContentStore()

	h1, err := cs.Put(ctx, []byte("once"))
	require.NoError(t, err)
	before, err := cs.Find(ctx, "")
	require.NoError(t, err)

	h2, err := cs.Put(ctx, []byte("once"))
	require.NoError(t, err)
	after, err := cs.Find(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, before, after, "第二次 Put 不应改变可观察状态")

	ok, err := cs.Has(ctx, h1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func testContentGetErrors(t *testing.T, ds storage.DataStore) {
	ctx := context.Background()
	cs := ds.ContentStore()

	_, err := cs.Get(ctx, core.CalculateBlobHash([]byte("never stored")))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ok, err := cs.Has(ctx, core.CalculateBlobHash([]byte("never stored")))
	require.NoError(t, err)
	assert.False(t, ok)

	for _, bad := range []types.Hash{"", "abc", types.Hash(strings.Repeat("Z", 64)), types.Hash(strings.Repeat("a", 65))} {
		_, err := cs.Get(ctx, bad)
		assert.ErrorIs(t, err, storage.ErrInvalidIdentifier, "Get(%q)", bad)
		assert.NotErrorIs(t, err, storage.ErrNotFound)

		_, err = cs.Has(ctx, bad)
		assert.ErrorIs(t, err, storage.ErrInvalidIdentifier, "Has(%q)", bad)
	}
}

func testContentFind(t *testing.T, ds storage.DataStore) {
	ctx := context.Background()
	cs := ds.ContentStore()

	var all []types.Hash
	for i := 0; i < 5; i++ {
		h, err := cs.Put(ctx, []byte(fmt.Sprintf("item-%d", i)))
		require.NoError(t, err)
		all = append(all, h)
	}

	found, err := cs.Find(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, all, found)
	assert.IsNonDecreasing(t, hashStrings(found), "Find 结果必须排序")

	target := all[2]
	found, err = cs.Find(ctx, string(target[:12]))
	require.NoError(t, err)
	assert.Equal(t, []types.Hash{target}, found)

	full, err := storage.ExpandHash(ctx, cs, types.HashPrefix(target[:12]))
	require.NoError(t, err)
	assert.Equal(t, target, full)

	_, err = storage.ExpandHash(ctx, cs, "ab")
	assert.ErrorIs(t, err, storage.ErrInvalidIdentifier)
}

func testPointerOverwrite(t *testing.T, ds storage.DataStore) {
	ctx := context.Background()
	ps := ds.PointerStore()

	c1 := core.CalculateBlobHash([]byte("c1"))
	c2 := core.CalculateBlobHash([]byte("c2"))

	prev, err := ps.Put(ctx, "p", c1)
	require.NoError(t, err)
	assert.Equal(t, types.NoHash, prev, "第一次创建返回 none")

	prev, err = ps.Put(ctx, "p", c2)
	require.NoError(t, err)
	assert.Equal(t, c1, prev)

	got, err := ps.Get(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, c2, got)

	// 写回同样的值也是合法的
	prev, err = ps.Put(ctx, "p", c2)
	require.NoError(t, err)
	assert.Equal(t, c2, prev)

	// 指针可以指向内容库里不存在的内容 (没有引用完整性)
	_, err = ds.ContentStore().Get(ctx, c2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testPointerErrors(t *testing.T, ds storage.DataStore) {
	ctx := context.Background()
	ps := ds.PointerStore()
	valid := core.CalculateBlobHash([]byte("target"))

	_, err := ps.Get(ctx, "never-written")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = ps.Get(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidIdentifier)

	// 非法指针标识符
	_, err = ps.Put(ctx, "", valid)
	assert.ErrorIs(t, err, storage.ErrInvalidIdentifier)
	assert.Equal(t, ident.Pointer, ident.GrammarOf(err))

	_, err = ps.Put(ctx, "../escape", valid)
	assert.ErrorIs(t, err, storage.ErrInvalidIdentifier)

	// 非法内容标识符 (长度错误)
	_, err = ps.Put(ctx, "latest", types.Hash(valid[:10]))
	assert.ErrorIs(t, err, storage.ErrInvalidIdentifier)
	assert.Equal(t, ident.Content, ident.GrammarOf(err))

	// 校验失败不得产生任何写入
	ok, err := ps.Has(ctx, "latest")
	require.NoError(t, err)
	assert.False(t, ok)
	all, err := ps.Find(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)

	// 已有指针在非法写入后保持不变
	_, err = ps.Put(ctx, "latest", valid)
	require.NoError(t, err)
	_, err = ps.Put(ctx, "latest", "bad")
	require.Error(t, err)
	got, err := ps.Get(ctx, "latest")
	require.NoError(t, err)
	assert.Equal(t, valid, got)
}

func testPointerFind(t *testing.T, ds storage.DataStore) {
	ctx := context.Background()
	ps := ds.PointerStore()
	h := core.CalculateBlobHash([]byte("x"))

	for _, p := range []types.PointerID{"refs/heads/main", "refs/heads/dev", "refs/tags/v1", "latest"} {
		_, err := ps.Put(ctx, p, h)
		require.NoError(t, err)
	}

	heads, err := ps.Find(ctx, "refs/heads/")
	require.NoError(t, err)
	assert.Equal(t, []types.PointerID{"refs/heads/dev", "refs/heads/main"}, heads)

	all, err := ps.Find(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := ps.Find(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// testScenario: hello -> H, latest -> H, world -> H2, latest -> H2
func testScenario(t *testing.T, ds storage.DataStore) {
	ctx := context.Background()
	cs, ps := ds.ContentStore(), ds.PointerStore()

	h, err := cs.Put(ctx, []byte("hello"))
	require.NoError(t, err)

	got, err := cs.Get(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	prev, err := ps.Put(ctx, "latest", h)
	require.NoError(t, err)
	assert.True(t, prev.IsZero())

	target, err := ps.Get(ctx, "latest")
	require.NoError(t, err)
	assert.Equal(t, h, target)

	h2, err := cs.Put(ctx, []byte("world"))
	require.NoError(t, err)

	prev, err = ps.Put(ctx, "latest", h2)
	require.NoError(t, err)
	assert.Equal(t, h, prev)

	target, err = ps.Get(ctx, "latest")
	require.NoError(t, err)
	assert.Equal(t, h2, target)
}

func testConcurrentContentPut(t *testing.T, ds storage.DataStore, workers int) {
	ctx := context.Background()
	cs := ds.ContentStore()
	payload := []byte(strings.Repeat("concurrent ", 256))
	want := core.CalculateBlobHash(payload)

	var wg sync.WaitGroup
	results := make([]types.Hash, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// 每个 goroutine 使用自己的切片
			results[i], errs[i] = cs.Put(ctx, append([]byte(nil), payload...))
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}

	got, err := cs.Get(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	all, err := cs.Find(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testConcurrentPointerPut(t *testing.T, ds storage.DataStore, workers int) {
	ctx := context.Background()
	ps := ds.PointerStore()

	submitted := make(map[types.Hash]bool, workers)
	targets := make([]types.Hash, workers)
	for i := range targets {
		targets[i] = core.CalculateBlobHash([]byte(fmt.Sprintf("v%d", i)))
		submitted[targets[i]] = true
	}

	var wg sync.WaitGroup
	prevs := make([]types.Hash, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prevs[i], errs[i] = ps.Put(ctx, "contended", targets[i])
		}(i)
	}
	wg.Wait()

	// 线性历史：恰好一个调用看到 none，其余每个 previous 都是真实写入过的值且只出现一次
	seen := make(map[types.Hash]bool)
	creations := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if prevs[i].IsZero() {
			creations++
			continue
		}
		assert.True(t, submitted[prevs[i]], "previous %s was never stored", prevs[i])
		assert.False(t, seen[prevs[i]], "previous %s observed twice", prevs[i])
		seen[prevs[i]] = true
	}
	assert.Equal(t, 1, creations)

	final, err := ps.Get(ctx, "contended")
	require.NoError(t, err)
	assert.True(t, submitted[final])
	assert.False(t, seen[final], "最终值不应被任何调用当作 previous 观察到")
	assert.Len(t, seen, workers-1)
}

func hashStrings(hs []types.Hash) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = string(h)
	}
	return out
}
