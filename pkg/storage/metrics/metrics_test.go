package metrics

import (
	"context"
	"testing"

	"gentle/pkg/storage"
	"gentle/pkg/storage/mem"
	"gentle/pkg/storage/storetest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.DataStore {
		return Wrap(mem.New(), NewCollector(prometheus.NewRegistry()))
	})
}

func TestMetricsStore_Counts(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	s := Wrap(mem.New(), c)
	ctx := context.Background()

	h, err := s.ContentStore().Put(ctx, []byte("hello"))
	require.NoError(t, err)
	_, err = s.ContentStore().Get(ctx, h)
	require.NoError(t, err)
	_, err = s.PointerStore().Get(ctx, "nope")
	require.Error(t, err)
	_, err = s.PointerStore().Put(ctx, "bad pointer!", h)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("content", "put", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("content", "get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("pointer", "get", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("pointer", "put", "invalid")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.bytes.WithLabelValues("in")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.bytes.WithLabelValues("out")))
}

func TestNewCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	assert.Panics(t, func() { NewCollector(reg) })
}
