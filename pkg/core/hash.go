package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"gentle/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// 定义规范化 (Canonical) 的 CBOR 编码选项
// 指针记录落盘时使用，保证相同记录得到相同字节
var encOptions = cbor.EncOptions{
	// 1. 强制 Map Key 排序 (Canonical)
	Sort: cbor.SortCanonical,

	// 2. 浮点数必须使用64位表示
	ShortestFloat: cbor.ShortestFloatNone,

	// 3. 时间格式化为 Unix 整数
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,

	// 4. 禁止不定长编码 (Indefinite Length)
	IndefLength: cbor.IndefLengthForbidden,

	BigIntConvert: cbor.BigIntConvertShortest,
}

// 全局复用的编码模式
var em, _ = encOptions.EncMode()

// 解码选项
var decOptions = cbor.DecOptions{
	// --- 安全性配置 (防 DoS 攻击) ---
	MaxArrayElements: 10000,
	MaxMapPairs:      10000,
	MaxNestedLevels:  100,

	// --- 规范性配置 ---
	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	BignumTag:   cbor.BignumTagForbidden,
	TimeTag:     cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

// CalculateBlobHash 计算原始数据的内容标识符
// 相同字节 -> 相同 Hash；这是整个内容寻址层唯一的摘要函数
func CalculateBlobHash(data []byte) types.Hash {
	hashBytes := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(hashBytes[:]))
}

// VerifyBlob 检查 data 是否确实对应 hash
func VerifyBlob(hash types.Hash, data []byte) bool {
	return CalculateBlobHash(data) == hash
}

// SameContent 比较两段内容是否逐字节相同 (用于哈希碰撞检测)
func SameContent(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// Clone 返回一份独立的副本，调用方永远拿不到存储内部的切片
func Clone(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
