package core

import (
	"fmt"
	"time"

	"gentle/pkg/types"
)

// PointerRecord 是指针在 KV / 文件后端里的持久化形式
// 使用整数 Key，保持编码紧凑且稳定
type PointerRecord struct {
	Target    types.Hash `cbor:"1,keyasint"`
	Version   int64      `cbor:"2,keyasint"`
	UpdatedAt int64      `cbor:"3,keyasint"` // Unix 纳秒

	// Name 冗余保存指针名，文件后端按名字的哈希落盘，列举时需要它
	Name types.PointerID `cbor:"4,keyasint,omitempty"`
}

// NextPointerRecord 基于旧记录构造新记录 (版本号 +1)
// prev 为 nil 表示第一次创建
func NextPointerRecord(prev *PointerRecord, name types.PointerID, target types.Hash, now time.Time) PointerRecord {
	version := int64(1)
	if prev != nil {
		version = prev.Version + 1
	}
	return PointerRecord{
		Target:    target,
		Version:   version,
		UpdatedAt: now.UnixNano(),
		Name:      name,
	}
}

// EncodePointerRecord 规范化编码
func EncodePointerRecord(r PointerRecord) ([]byte, error) {
	data, err := em.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pointer record: %w", err)
	}
	return data, nil
}

// DecodePointerRecord 解码并校验目标哈希
func DecodePointerRecord(data []byte) (PointerRecord, error) {
	var r PointerRecord
	if err := dm.Unmarshal(data, &r); err != nil {
		return PointerRecord{}, fmt.Errorf("corrupted pointer record: %w", err)
	}
	if !r.Target.IsValid() {
		return PointerRecord{}, fmt.Errorf("corrupted pointer record: bad target %q", r.Target)
	}
	return r, nil
}
