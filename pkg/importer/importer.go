// Package importer 把一个目录树导入 DataStore：
// 每个文件的内容进入内容库，并以 "<prefix>/<相对路径>" 为名建立指针
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"gentle/pkg/ident"
	"gentle/pkg/ignore"
	"gentle/pkg/storage"
	"gentle/pkg/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result 单个文件的导入结果
type Result struct {
	Path     string // 相对于导入根目录，使用 '/' 分隔
	Pointer  types.PointerID
	Hash     types.Hash
	Previous types.Hash
	Size     int64

	// Skipped 为 true 时 Reason 说明原因，其余字段为空
	Skipped bool
	Reason  string
}

type Importer struct {
	ds      storage.DataStore
	workers int
	logger  *zap.Logger
	extra   []string
}

type Option func(*Importer)

// WithWorkers 并发度上限，默认 GOMAXPROCS
func WithWorkers(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.workers = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// WithIgnoreRules 追加忽略规则 (gitignore 语法)
func WithIgnoreRules(rules ...string) Option {
	return func(im *Importer) { im.extra = append(im.extra, rules...) }
}

func New(ds storage.DataStore, opts ...Option) *Importer {
	im := &Importer{
		ds:      ds,
		workers: runtime.GOMAXPROCS(0),
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(im)
	}
	return im
}

// With 返回一个应用了 opts 的副本，原 Importer 不受影响
func (im *Importer) With(opts ...Option) *Importer {
	cp := *im
	cp.extra = append([]string(nil), im.extra...)
	for _, o := range opts {
		o(&cp)
	}
	return &cp
}

// ImportDir 遍历 root 并导入所有未被忽略的普通文件
// 结果按遍历顺序 (逐层字典序) 返回；任何一个文件失败都会取消整个导入并返回错误
func (im *Importer) ImportDir(ctx context.Context, root, prefix string) ([]Result, error) {
	if prefix != "" {
		if err := ident.ValidatePointer(types.PointerID(prefix)); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	matcher, err := ignore.NewMatcher(root, im.extra...)
	if err != nil {
		return nil, err
	}

	// 1. 收集文件 (WalkDir 按字典序遍历)
	var results []Result
	walkFn := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if matcher.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		r := Result{Path: rel}
		switch {
		case !d.Type().IsRegular():
			r.Skipped, r.Reason = true, "not a regular file"
		default:
			r.Pointer = pointerFor(prefix, rel)
			if err := ident.ValidatePointer(r.Pointer); err != nil {
				r.Skipped, r.Reason = true, err.Error()
			}
		}
		results = append(results, r)
		return nil
	}
	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, fmt.Errorf("walk failed: %w", err)
	}

	// 2. 并发导入，每个 goroutine 只写自己的下标
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for i := range results {
		if results[i].Skipped {
			im.logger.Info("skip", zap.String("path", results[i].Path), zap.String("reason", results[i].Reason))
			continue
		}
		i := i
		g.Go(func() error {
			return im.importFile(gctx, filepath.Join(root, filepath.FromSlash(results[i].Path)), &results[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (im *Importer) importFile(ctx context.Context, p string, r *Result) error {
	data, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", r.Path, err)
	}

	h, err := im.ds.ContentStore().Put(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", r.Path, err)
	}
	prev, err := im.ds.PointerStore().Put(ctx, r.Pointer, h)
	if err != nil {
		return fmt.Errorf("failed to point %s: %w", r.Pointer, err)
	}

	r.Hash, r.Previous, r.Size = h, prev, int64(len(data))
	im.logger.Debug("imported",
		zap.String("path", r.Path),
		zap.String("pointer", string(r.Pointer)),
		zap.String("hash", h.Short()))
	return nil
}

func pointerFor(prefix, rel string) types.PointerID {
	if prefix == "" {
		return types.PointerID(rel)
	}
	return types.PointerID(path.Join(prefix, rel))
}
