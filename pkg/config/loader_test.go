package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	require.NoError(t, Load(""))

	assert.Equal(t, "disk", viper.GetString("storage.type"))
	assert.Equal(t, DirName, filepath.Base(viper.GetString("storage.path")))
	assert.Equal(t, 5432, viper.GetInt("database.port"))
	assert.Equal(t, 24*time.Hour, viper.GetDuration("cache.ttl"))
	assert.Equal(t, "warn", viper.GetString("log.level"))
}

func TestLoad_ExplicitFile(t *testing.T) {
	viper.Reset()
	cfg := writeConfig(t, t.TempDir(), `
storage:
  type: badger
  path: /data/gentle
database:
  driver: sqlite
cache:
  ttl: 5m
`)

	require.NoError(t, Load(cfg))

	assert.Equal(t, cfg, Used())
	assert.Equal(t, "badger", viper.GetString("storage.type"))
	assert.Equal(t, "/data/gentle", viper.GetString("storage.path"))
	assert.Equal(t, "sqlite", viper.GetString("database.driver"))
	assert.Equal(t, 5*time.Minute, viper.GetDuration("cache.ttl"))
	// 文件里没写的键仍然有默认值
	assert.Equal(t, "localhost", viper.GetString("database.host"))
}

func TestLoad_SearchPath(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DirName), 0755))
	writeConfig(t, filepath.Join(dir, DirName), "storage:\n  type: memory\n")
	t.Chdir(dir)

	require.NoError(t, Load(""))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	viper.Reset()
	cfg := writeConfig(t, t.TempDir(), "storage:\n  type: disk\n")
	t.Setenv("GENTLE_STORAGE_TYPE", "sql")
	t.Setenv("GENTLE_DATABASE_HOST", "db.internal")

	require.NoError(t, Load(cfg))
	assert.Equal(t, "sql", viper.GetString("storage.type"))
	assert.Equal(t, "db.internal", viper.GetString("database.host"))
}

func TestLoad_LegacyDirAlias(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv(LegacyDirEnv, "/legacy/dir")

	require.NoError(t, Load(""))
	assert.Equal(t, "/legacy/dir", viper.GetString("storage.path"))

	// 新名字优先
	viper.Reset()
	t.Setenv("GENTLE_STORAGE_PATH", "/new/dir")
	require.NoError(t, Load(""))
	assert.Equal(t, "/new/dir", viper.GetString("storage.path"))
}

func TestLoad_Errors(t *testing.T) {
	viper.Reset()
	err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	viper.Reset()
	bad := writeConfig(t, t.TempDir(), "storage: [unclosed\n")
	err = Load(bad)
	assert.ErrorContains(t, err, "fatal error config file")
}
