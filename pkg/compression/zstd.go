// Package compression 提供磁盘/对象存储使用的透明 zstd 压缩
package compression

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// 每个编码后的 blob 以 1 字节标记开头，解码时不需要猜测格式
const (
	tagRaw  byte = 0x00
	tagZstd byte = 0x01
)

// MinSize 小于该长度的数据不压缩
const MinSize = 128

var ErrCorrupt = errors.New("corrupt compressed blob")

type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	enabled bool
}

// NewCompressor level: 1 最快, 2 默认, 3 更高压缩率
// enabled=false 时只写 raw 标记，但仍能读取已压缩的数据
func NewCompressor(level int, enabled bool) (*Compressor, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	if !enabled {
		return &Compressor{decoder: decoder}, nil
	}

	var encoderLevel zstd.EncoderLevel
	switch level {
	case 1:
		encoderLevel = zstd.SpeedFastest
	case 3:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedDefault
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(encoderLevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		decoder.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}

	return &Compressor{
		encoder: encoder,
		decoder: decoder,
		enabled: true,
	}, nil
}

func (c *Compressor) Enabled() bool { return c.enabled }

// Compress 返回带标记的编码结果；压缩没有收益时保留原始字节
func (c *Compressor) Compress(data []byte) []byte {
	if c.enabled && len(data) >= MinSize {
		out := make([]byte, 1, len(data)/2+1)
		out[0] = tagZstd
		out = c.encoder.EncodeAll(data, out)
		if len(out) < len(data)+1 {
			return out
		}
	}

	out := make([]byte, len(data)+1)
	out[0] = tagRaw
	copy(out[1:], data)
	return out
}

func (c *Compressor) Decompress(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	switch blob[0] {
	case tagRaw:
		out := make([]byte, len(blob)-1)
		copy(out, blob[1:])
		return out, nil
	case tagZstd:
		out, err := c.decoder.DecodeAll(blob[1:], []byte{})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrCorrupt, blob[0])
	}
}

func (c *Compressor) Close() error {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return nil
}
