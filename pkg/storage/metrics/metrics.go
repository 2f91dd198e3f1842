// Package metrics 为 DataStore 增加 Prometheus 指标
package metrics

import (
	"context"
	"errors"
	"time"

	"gentle/pkg/storage"
	"gentle/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector 持有全部指标；同一个 Registerer 只能创建一次
type Collector struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		ops: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gentle",
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of store operations",
			},
			[]string{"store", "op", "result"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gentle",
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Store operation latency in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"store", "op"},
		),
		bytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gentle",
				Subsystem: "store",
				Name:      "content_bytes_total",
				Help:      "Content bytes moved through the store",
			},
			[]string{"direction"},
		),
	}
}

// result 把错误归类为有限的标签值
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrInvalidIdentifier):
		return "invalid"
	case errors.Is(err, storage.ErrIntegrityViolation):
		return "integrity"
	case errors.Is(err, storage.ErrConcurrentUpdate):
		return "conflict"
	default:
		return "error"
	}
}

func (c *Collector) observe(store, op string, start time.Time, err error) {
	c.ops.WithLabelValues(store, op, result(err)).Inc()
	c.duration.WithLabelValues(store, op).Observe(time.Since(start).Seconds())
}

// Store 是带指标的 DataStore
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

func Wrap(inner storage.DataStore, c *Collector) *Store {
	return &Store{
		inner:    inner,
		content:  &ContentStore{s: inner.ContentStore(), c: c},
		pointers: &PointerStore{s: inner.PointerStore(), c: c},
	}
}

func (s *Store) ContentStore() storage.ContentStore { return s.content }
func (s *Store) PointerStore() storage.PointerStore { return s.pointers }
func (s *Store) Close() error                       { return s.inner.Close() }

type ContentStore struct {
	s storage.ContentStore
	c *Collector
}

func (m *ContentStore) Put(ctx context.Context, data []byte) (types.Hash, error) {
	start := time.Now()
	h, err := m.s.Put(ctx, data)
	m.c.observe("content", "put", start, err)
	if err == nil {
		m.c.bytes.WithLabelValues("in").Add(float64(len(data)))
	}
	return h, err
}

func (m *ContentStore) Get(ctx context.Context, hash types.Hash) ([]byte, error) {
	start := time.Now()
	data, err := m.s.Get(ctx, hash)
	m.c.observe("content", "get", start, err)
	if err == nil {
		m.c.bytes.WithLabelValues("out").Add(float64(len(data)))
	}
	return data, err
}

func (m *ContentStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	start := time.Now()
	ok, err := m.s.Has(ctx, hash)
	m.c.observe("content", "has", start, err)
	return ok, err
}

func (m *ContentStore) Find(ctx context.Context, prefix string) ([]types.Hash, error) {
	start := time.Now()
	out, err := m.s.Find(ctx, prefix)
	m.c.observe("content", "find", start, err)
	return out, err
}

func (m *ContentStore) Delete(ctx context.Context, hash types.Hash) error {
	start := time.Now()
	err := storage.Delete(ctx, m.s, hash)
	m.c.observe("content", "delete", start, err)
	return err
}

type PointerStore struct {
	s storage.PointerStore
	c *Collector
}

func (m *PointerStore) Put(ctx context.Context, pointer types.PointerID, content types.Hash) (types.Hash, error) {
	start := time.Now()
	prev, err := m.s.Put(ctx, pointer, content)
	m.c.observe("pointer", "put", start, err)
	return prev, err
}

func (m *PointerStore) Get(ctx context.Context, pointer types.PointerID) (types.Hash, error) {
	start := time.Now()
	target, err := m.s.Get(ctx, pointer)
	m.c.observe("pointer", "get", start, err)
	return target, err
}

func (m *PointerStore) Has(ctx context.Context, pointer types.PointerID) (bool, error) {
	start := time.Now()
	ok, err := m.s.Has(ctx, pointer)
	m.c.observe("pointer", "has", start, err)
	return ok, err
}

func (m *PointerStore) Find(ctx context.Context, prefix string) ([]types.PointerID, error) {
	start := time.Now()
	out, err := m.s.Find(ctx, prefix)
	m.c.observe("pointer", "find", start, err)
	return out, err
}

func (m *PointerStore) Delete(ctx context.Context, pointer types.PointerID) error {
	start := time.Now()
	err := storage.Delete(ctx, m.s, pointer)
	m.c.observe("pointer", "delete", start, err)
	return err
}
