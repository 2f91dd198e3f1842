package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gentle/pkg/app"
	"gentle/pkg/core"
	"gentle/pkg/storage"
	"gentle/pkg/types"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupIntegrationEnv 使用内存后端组装 App，并注入全局变量 G
func setupIntegrationEnv(t *testing.T) *app.App {
	t.Chdir(t.TempDir())

	viper.Reset()
	viper.Set("storage.type", "memory")
	viper.Set("log.output", "none")

	application, err := app.NewApp(context.Background())
	require.NoError(t, err)

	// cmd 包依赖全局变量 G，我们在测试里临时覆盖它
	G = application
	t.Cleanup(func() {
		_ = application.Close()
		G = nil
	})
	return application
}

// run 执行一条命令，返回 stdout
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	// 全局 flag 变量在两次执行之间不会被 cobra 重置
	putPointer, importPrefix, importWorkers = "", "", 0

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestIntegration_Scenario(t *testing.T) {
	setupIntegrationEnv(t)

	// gentle put <<< hello / world
	out, err := run(t, "hello", "put")
	require.NoError(t, err)
	h1 := strings.TrimSpace(out)
	assert.Equal(t, core.CalculateBlobHash([]byte("hello")).String(), h1)

	out, err = run(t, "world", "put")
	require.NoError(t, err)
	h2 := strings.TrimSpace(out)

	// gentle point latest <h1>
	out, err = run(t, "", "point", "latest", h1)
	require.NoError(t, err)
	assert.Equal(t, "(none)\n", out)

	// gentle point latest <h2 短哈希>，返回 h1
	out, err = run(t, "", "point", "latest", h2[:10])
	require.NoError(t, err)
	assert.Equal(t, h1+"\n", out)

	// 解引用
	out, err = run(t, "", "resolve", "latest")
	require.NoError(t, err)
	assert.Equal(t, "world", out)

	out, err = run(t, "", "get", "latest")
	require.NoError(t, err)
	assert.Equal(t, h2+"\n", out)

	out, err = run(t, "", "get", h1[:10])
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	out, err = run(t, "", "find", "lat")
	require.NoError(t, err)
	assert.Equal(t, "pointer\tlatest\n", out)

	out, err = run(t, "", "find")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

	// 删除指针后不可再解析
	out, err = run(t, "", "rm", "latest")
	require.NoError(t, err)
	assert.Contains(t, out, "pointer:latest")

	_, err = run(t, "", "resolve", "latest")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_PutWithPointer(t *testing.T) {
	a := setupIntegrationEnv(t)
	ctx := context.Background()

	file := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(file, []byte{0x00, 0x01, 0x02}, 0644))

	out, err := run(t, "", "put", file, "--pointer", "models/current")
	require.NoError(t, err)

	target, err := a.Store.PointerStore().Get(ctx, "models/current")
	require.NoError(t, err)
	assert.Equal(t, target.String()+"\n", out)
}

func TestIntegration_InvalidIdentifiers(t *testing.T) {
	setupIntegrationEnv(t)

	out, err := run(t, "x", "put")
	require.NoError(t, err)
	h := strings.TrimSpace(out)

	_, err = run(t, "", "point", "bad name", h)
	assert.ErrorIs(t, err, storage.ErrInvalidIdentifier)

	_, err = run(t, "", "point", "latest", "not-hex")
	assert.ErrorIs(t, err, storage.ErrInvalidIdentifier)
}

func TestIntegration_Import(t *testing.T) {
	setupIntegrationEnv(t)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("beta"), 0644))

	out, err := run(t, "", "import", dir, "--prefix", "snap")
	require.NoError(t, err)
	assert.Contains(t, out, "2 imported, 0 skipped")

	out, err = run(t, "", "resolve", "snap/sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "beta", out)

	out, err = run(t, "", "ls", "snap")
	require.NoError(t, err)
	assert.Contains(t, out, "snap/a.txt")

	// export 是 import 的逆过程
	dst := t.TempDir()
	out, err = run(t, "", "export", "snap", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "2 files written")
	got, err := os.ReadFile(filepath.Join(dst, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("beta"), got)
}

func TestIntegration_Random(t *testing.T) {
	out, err := run(t, "", "random")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 64)
}

func TestIntegration_FullAndType(t *testing.T) {
	setupIntegrationEnv(t)

	out, err := run(t, "hello", "put")
	require.NoError(t, err)
	h := strings.TrimSpace(out)
	_, err = run(t, "", "point", "latest", h)
	require.NoError(t, err)
	_, err = run(t, "", "point", "later", h)
	require.NoError(t, err)

	// full 展开缩写
	out, err = run(t, "", "full", h[:6])
	require.NoError(t, err)
	assert.Equal(t, h+"\n", out)

	out, err = run(t, "", "full", "latest")
	require.NoError(t, err)
	assert.Equal(t, "latest\n", out)

	_, err = run(t, "", "full", "lat")
	assert.ErrorIs(t, err, storage.ErrAmbiguousHash)

	_, err = run(t, "", "full", "nothing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// type 打印种类，不唯一或不存在时什么都不打印
	out, err = run(t, "", "type", h[:6])
	require.NoError(t, err)
	assert.Equal(t, "content\n", out)

	out, err = run(t, "", "type", "latest")
	require.NoError(t, err)
	assert.Equal(t, "pointer\n", out)

	for _, id := range []string{"lat", "nothing", "bad name"} {
		out, err = run(t, "", "type", id)
		require.NoError(t, err, id)
		assert.Empty(t, out, id)
	}
}

func TestIntegration_RemoveMany(t *testing.T) {
	a := setupIntegrationEnv(t)
	ctx := context.Background()

	out, err := run(t, "hello", "put")
	require.NoError(t, err)
	h := strings.TrimSpace(out)
	for _, p := range []string{"a", "b", "c"} {
		_, err = run(t, "", "point", p, h)
		require.NoError(t, err)
	}

	out, err = run(t, "", "rm", "a", "b", h[:8])
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "removed"))

	for _, p := range []string{"a", "b"} {
		ok, err := a.Store.PointerStore().Has(ctx, types.PointerID(p))
		require.NoError(t, err)
		assert.False(t, ok, p)
	}
	ok, err := a.Store.ContentStore().Has(ctx, core.CalculateBlobHash([]byte("hello")))
	require.NoError(t, err)
	assert.False(t, ok)

	// 第一个失败的 id 终止命令，之后的不再处理
	_, err = run(t, "", "rm", "missing", "c")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	ok, err = a.Store.PointerStore().Has(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
}
