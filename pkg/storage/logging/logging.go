// Package logging 包装任意 DataStore，把每一次调用记录到 zap
// 内容库的日志带 store=content，指针库带 store=pointer
package logging

import (
	"context"
	"errors"
	"time"

	"gentle/pkg/storage"
	"gentle/pkg/types"

	"go.uber.org/zap"
)

type Store struct {
	inner    storage.DataStore
	content  *ContentStore
	pointers *PointerStore
}

var (
	_ storage.DataStore                = (*Store)(nil)
	_ storage.Deleter[types.Hash]      = (*ContentStore)(nil)
	_ storage.Deleter[types.PointerID] = (*PointerStore)(nil)
)

func New(inner storage.DataStore, logger *zap.Logger) *Store {
	return &Store{
		inner:    inner,
		content:  &ContentStore{s: inner.ContentStore(), log: logger.With(zap.String("store", "content"))},
		pointers: &PointerStore{s: inner.PointerStore(), log: logger.With(zap.String("store", "pointer"))},
	}
}

func (s *Store) ContentStore() storage.ContentStore { return s.content }
func (s *Store) PointerStore() storage.PointerStore { return s.pointers }
func (s *Store) Close() error                       { return s.inner.Close() }

// record 成功和 "不存在" 记 Debug，其余错误记 Warn
func record(log *zap.Logger, op string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Duration("took", time.Since(start)))
	switch {
	case err == nil:
		log.Debug(op, fields...)
	case errors.Is(err, storage.ErrNotFound):
		log.Debug(op, append(fields, zap.Error(err))...)
	default:
		log.Warn(op, append(fields, zap.Error(err))...)
	}
}

type ContentStore struct {
	s   storage.ContentStore
	log *zap.Logger
}

func (c *ContentStore) Put(ctx context.Context, data []byte) (types.Hash, error) {
	start := time.Now()
	h, err := c.s.Put(ctx, data)
	record(c.log, "put", start, err, zap.String("hash", string(h)), zap.Int("size", len(data)))
	return h, err
}

func (c *ContentStore) Get(ctx context.Context, hash types.Hash) ([]byte, error) {
	start := time.Now()
	data, err := c.s.Get(ctx, hash)
	record(c.log, "get", start, err, zap.String("hash", string(hash)), zap.Int("size", len(data)))
	return data, err
}

func (c *ContentStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	start := time.Now()
	ok, err := c.s.Has(ctx, hash)
	record(c.log, "has", start, err, zap.String("hash", string(hash)), zap.Bool("found", ok))
	return ok, err
}

func (c *ContentStore) Find(ctx context.Context, prefix string) ([]types.Hash, error) {
	start := time.Now()
	out, err := c.s.Find(ctx, prefix)
	record(c.log, "find", start, err, zap.String("prefix", prefix), zap.Int("matches", len(out)))
	return out, err
}

func (c *ContentStore) Delete(ctx context.Context, hash types.Hash) error {
	start := time.Now()
	err := storage.Delete(ctx, c.s, hash)
	record(c.log, "delete", start, err, zap.String("hash", string(hash)))
	return err
}

type PointerStore struct {
	s   storage.PointerStore
	log *zap.Logger
}

func (p *PointerStore) Put(ctx context.Context, pointer types.PointerID, content types.Hash) (types.Hash, error) {
	start := time.Now()
	prev, err := p.s.Put(ctx, pointer, content)
	record(p.log, "put", start, err,
		zap.String("pointer", string(pointer)),
		zap.String("target", string(content)),
		zap.String("previous", string(prev)))
	return prev, err
}

func (p *PointerStore) Get(ctx context.Context, pointer types.PointerID) (types.Hash, error) {
	start := time.Now()
	target, err := p.s.Get(ctx, pointer)
	record(p.log, "get", start, err, zap.String("pointer", string(pointer)), zap.String("target", string(target)))
	return target, err
}

func (p *PointerStore) Has(ctx context.Context, pointer types.PointerID) (bool, error) {
	start := time.Now()
	ok, err := p.s.Has(ctx, pointer)
	record(p.log, "has", start, err, zap.String("pointer", string(pointer)), zap.Bool("found", ok))
	return ok, err
}

func (p *PointerStore) Find(ctx context.Context, prefix string) ([]types.PointerID, error) {
	start := time.Now()
	out, err := p.s.Find(ctx, prefix)
	record(p.log, "find", start, err, zap.String("prefix", prefix), zap.Int("matches", len(out)))
	return out, err
}

func (p *PointerStore) Delete(ctx context.Context, pointer types.PointerID) error {
	start := time.Now()
	err := storage.Delete(ctx, p.s, pointer)
	record(p.log, "delete", start, err, zap.String("pointer", string(pointer)))
	return err
}
