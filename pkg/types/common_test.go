package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		input Hash
		want  bool
	}{
		{
			name:  "Valid Hash (64 chars)",
			input: Hash(strings.Repeat("a", 64)),
			want:  true,
		},
		{
			name:  "Too Short",
			input: Hash("abc"),
			want:  false,
		},
		{
			name:  "Empty",
			input: Hash(""),
			want:  false,
		},
		{
			name:  "Too Long",
			input: Hash(strings.Repeat("a", 65)),
			want:  false,
		},
		{
			name:  "Upper Case",
			input: Hash(strings.Repeat("A", 64)),
			want:  false,
		},
		{
			name:  "Non Hex",
			input: Hash(strings.Repeat("g", 64)),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.input.IsValid())
		})
	}
}

func TestHash_String(t *testing.T) {
	s := "aabbcc"
	h := Hash(s)
	assert.Equal(t, s, h.String())
	assert.False(t, h.IsZero())
	assert.Equal(t, "aabbcc", h.Short())

	var zero Hash
	assert.True(t, zero.IsZero())
	assert.Equal(t, NoHash, zero)

	long := Hash(strings.Repeat("ab", 32))
	assert.Equal(t, "abababab", long.Short())
}

func TestHashPrefix_String(t *testing.T) {
	p := HashPrefix("aa")
	assert.Equal(t, "aa", p.String())
}

func TestNewRandomPointer(t *testing.T) {
	p1, err := NewRandomPointer()
	require.NoError(t, err)
	p2, err := NewRandomPointer()
	require.NoError(t, err)

	assert.Len(t, p1.String(), 64)
	assert.NotEqual(t, p1, p2, "两次随机生成不应相同")
	// 随机指针恰好也满足内容标识符的语法
	assert.True(t, Hash(p1).IsValid())
}
