package core

import (
	"encoding/hex"
	"testing"
	"time"

	"gentle/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 1. 摘要函数
// -----------------------------------------------------------------------------

func TestCalculateBlobHash_KnownVectors(t *testing.T) {
	tests := []struct {
		input string
		want  types.Hash
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"hello", "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{"world", "486ea46224d1bb4fb680f34f7c9ad96a8f24ec88be73ea8e5a6c65260e9cb8a7"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := CalculateBlobHash([]byte(tt.input))
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
			assert.True(t, VerifyBlob(got, []byte(tt.input)))
		})
	}
}

func TestCalculateBlobHash_Distinct(t *testing.T) {
	a := CalculateBlobHash([]byte("hello"))
	b := CalculateBlobHash([]byte("hello "))
	assert.NotEqual(t, a, b)
	assert.False(t, VerifyBlob(a, []byte("hello ")))
}

func TestClone(t *testing.T) {
	src := []byte("abc")
	dst := Clone(src)
	dst[0] = 'x'
	assert.Equal(t, []byte("abc"), src, "副本修改不应影响原始数据")

	assert.NotNil(t, Clone(nil))
	assert.True(t, SameContent(nil, []byte{}))
}

// -----------------------------------------------------------------------------
// 2. 指针记录编码
// -----------------------------------------------------------------------------

func TestPointerRecord_RoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 42)
	target := CalculateBlobHash([]byte("v1"))

	first := NextPointerRecord(nil, "latest", target, now)
	assert.Equal(t, int64(1), first.Version)

	data, err := EncodePointerRecord(first)
	require.NoError(t, err)

	got, err := DecodePointerRecord(data)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	second := NextPointerRecord(&got, "latest", CalculateBlobHash([]byte("v2")), now.Add(time.Second))
	assert.Equal(t, int64(2), second.Version)
	assert.Equal(t, types.PointerID("latest"), second.Name)
}

func TestPointerRecord_Canonical(t *testing.T) {
	r := PointerRecord{Target: CalculateBlobHash([]byte("x")), Version: 3, UpdatedAt: 7}
	a, err := EncodePointerRecord(r)
	require.NoError(t, err)
	b, err := EncodePointerRecord(r)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(a), hex.EncodeToString(b))
	// Map(3) 头部
	assert.Equal(t, byte(0xa3), a[0])
}

func TestPointerRecord_Corrupted(t *testing.T) {
	_, err := DecodePointerRecord([]byte{0xff, 0x00})
	assert.Error(t, err)

	bad, err := em.Marshal(PointerRecord{Target: "not-a-hash", Version: 1})
	require.NoError(t, err)
	_, err = DecodePointerRecord(bad)
	assert.ErrorContains(t, err, "bad target")
}
