// pkg/types/common.go
package types

import (
	"crypto/rand"
	"encoding/hex"
)

const (
	// HashLen 是内容标识符的固定长度 (SHA-256 的十六进制表示)
	HashLen = 64

	// MaxPointerLen 指针标识符的最大字节数
	MaxPointerLen = 255

	// MinPrefixLen 短哈希最少需要的字符数
	MinPrefixLen = 4
)

// Hash 代表内容的唯一标识符 (SHA256 Hex String)
// 这是一个"值对象"，应当是不可变的。
type Hash string

// NoHash 是 "不存在" 的哨兵值：指针第一次创建时作为 previous 返回
const NoHash Hash = ""

func (h Hash) String() string { return string(h) }

func (h Hash) IsZero() bool { return h == NoHash }

// IsValid 只做语法检查，不代表内容存在
func (h Hash) IsValid() bool {
	if len(h) != HashLen {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Short 返回用于日志显示的短哈希
func (h Hash) Short() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}

// PointerID 由调用方选择的指针标识符 (例如 "latest" 或 "refs/heads/main")
type PointerID string

func (p PointerID) String() string { return string(p) }

// HashPrefix 是可能被缩写的标识符
type HashPrefix string

func (p HashPrefix) String() string { return string(p) }

// NewRandomPointer 生成一个 256 bit 的随机指针标识符 (十六进制)
// 适合在没有自然名称时创建新指针
func NewRandomPointer() (PointerID, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return PointerID(hex.EncodeToString(buf[:])), nil
}
