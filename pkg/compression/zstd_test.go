package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressor_RoundTrip(t *testing.T) {
	c, err := NewCompressor(2, true)
	require.NoError(t, err)
	defer c.Close()

	inputs := map[string][]byte{
		"empty":        {},
		"small":        []byte("tiny"),
		"compressible": bytes.Repeat([]byte("abcdefgh"), 1024),
		// 看起来像 zstd 帧的原始数据也必须原样返回
		"zstd magic": {0x28, 0xb5, 0x2f, 0xfd, 0x00},
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			out, err := c.Decompress(c.Compress(in))
			require.NoError(t, err)
			assert.Equal(t, len(in), len(out))
			assert.True(t, bytes.Equal(in, out))
		})
	}
}

func TestCompressor_ShrinksRepetitiveData(t *testing.T) {
	c, err := NewCompressor(3, true)
	require.NoError(t, err)
	defer c.Close()

	in := bytes.Repeat([]byte("gentle "), 2048)
	blob := c.Compress(in)
	assert.Equal(t, tagZstd, blob[0])
	assert.Less(t, len(blob), len(in)/4)
}

func TestCompressor_DisabledStillReads(t *testing.T) {
	on, err := NewCompressor(1, true)
	require.NoError(t, err)
	defer on.Close()
	off, err := NewCompressor(0, false)
	require.NoError(t, err)
	defer off.Close()

	in := bytes.Repeat([]byte("z"), 4096)
	blob := off.Compress(in)
	assert.Equal(t, tagRaw, blob[0])

	out, err := off.Decompress(on.Compress(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCompressor_Corrupt(t *testing.T) {
	c, err := NewCompressor(2, true)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Decompress(nil)
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = c.Decompress([]byte{0x07, 1, 2})
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = c.Decompress([]byte{tagZstd, 1, 2, 3})
	assert.ErrorIs(t, err, ErrCorrupt)
}
