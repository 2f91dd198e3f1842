// Package exporter 是 importer 的逆过程：把一组指针还原为目录树
package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gentle/pkg/storage"
	"gentle/pkg/types"
)

type Exporter struct {
	ds storage.DataStore
}

func NewExporter(ds storage.DataStore) *Exporter {
	return &Exporter{ds: ds}
}

// ExportContent 将内容原样写入 writer
func (e *Exporter) ExportContent(ctx context.Context, hash types.Hash, writer io.Writer) error {
	data, err := e.ds.ContentStore().Get(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to get content: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write content %s: %w", hash.Short(), err)
	}
	return nil
}

type RestoreCallback func(path string, hash types.Hash, size int64)

// Under 返回 prefix 之下的全部指针 (prefix 本身或 "prefix/..."，空 prefix 表示全部)
func (e *Exporter) Under(ctx context.Context, prefix string) ([]types.PointerID, error) {
	all, err := e.ds.PointerStore().Find(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		return all, nil
	}
	out := make([]types.PointerID, 0, len(all))
	for _, p := range all {
		if string(p) == prefix || strings.HasPrefix(string(p), prefix+"/") {
			out = append(out, p)
		}
	}
	return out, nil
}

// RestorePrefix 把 prefix 之下的每个指针写成 targetDir 中的一个文件
// 路径为指针名去掉 prefix 后的部分；指针名恰好等于 prefix 时使用最后一段
func (e *Exporter) RestorePrefix(ctx context.Context, prefix, targetDir string, onRestore RestoreCallback) error {
	pointers, err := e.Under(ctx, prefix)
	if err != nil {
		return err
	}
	if len(pointers) == 0 {
		return storage.NotFound("pointer prefix", prefix)
	}

	for _, p := range pointers {
		rel := relative(prefix, string(p))
		fullPath := filepath.Join(targetDir, filepath.FromSlash(rel))

		// 1. 解引用
		hash, err := e.ds.PointerStore().Get(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to read pointer %s: %w", p, err)
		}

		// 2. 创建目录并写入文件
		// "a" 和 "a/b" 同时存在时这里会失败：同一路径不能既是文件又是目录
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return fmt.Errorf("failed to create dir for %s: %w", rel, err)
		}
		file, err := os.Create(fullPath)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", fullPath, err)
		}
		err = e.ExportContent(ctx, hash, file)
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("pointer %s: %w", p, err)
		}

		// 3. 触发回调
		if onRestore != nil {
			info, statErr := os.Stat(fullPath)
			size := int64(0)
			if statErr == nil {
				size = info.Size()
			}
			onRestore(fullPath, hash, size)
		}
	}
	return nil
}

func relative(prefix, pointer string) string {
	if prefix == "" {
		return pointer
	}
	if pointer == prefix {
		return path.Base(pointer)
	}
	return strings.TrimPrefix(pointer, prefix+"/")
}

// Entry 是 List 的一行
type Entry struct {
	Pointer types.PointerID
	Target  types.Hash
	Size    int64
	// Dangling 为 true 表示目标内容不存在
	Dangling bool
}

// List 列出 prefix 之下的指针及其目标大小
func (e *Exporter) List(ctx context.Context, prefix string) ([]Entry, error) {
	pointers, err := e.Under(ctx, prefix)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(pointers))
	for _, p := range pointers {
		target, err := e.ds.PointerStore().Get(ctx, p)
		if err != nil {
			return nil, err
		}
		entry := Entry{Pointer: p, Target: target}
		data, err := e.ds.ContentStore().Get(ctx, target)
		switch {
		case err == nil:
			entry.Size = int64(len(data))
		case errors.Is(err, storage.ErrNotFound):
			entry.Dangling = true
		default:
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
