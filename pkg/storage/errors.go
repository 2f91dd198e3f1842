package storage

import (
	"errors"
	"fmt"

	"gentle/pkg/ident"
	"gentle/pkg/types"
)

var (
	ErrNotFound = errors.New("object not found")

	// ErrInvalidIdentifier 与 ident 包共用同一个哨兵
	ErrInvalidIdentifier = ident.ErrInvalidIdentifier

	// ErrIntegrityViolation 相同 Hash 对应了不同的字节：摘要函数损坏或数据被篡改
	// 这不是可重试的错误
	ErrIntegrityViolation = errors.New("integrity violation")

	ErrAmbiguousHash = errors.New("ambiguous hash prefix")

	// ErrConcurrentUpdate CAS 重试次数耗尽
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")

	ErrDeleteUnsupported = errors.New("store does not support delete")
)

// IntegrityError 描述一次哈希碰撞 / 数据损坏
type IntegrityError struct {
	Hash       types.Hash
	StoredSize int
	PutSize    int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation: %s already stores %d bytes that differ from the %d bytes being put",
		e.Hash, e.StoredSize, e.PutSize)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrityViolation }

// CheckIntegrity 在 Put 命中已存在记录时调用
func CheckIntegrity(hash types.Hash, stored, incoming []byte) error {
	if len(stored) == len(incoming) && string(stored) == string(incoming) {
		return nil
	}
	return &IntegrityError{Hash: hash, StoredSize: len(stored), PutSize: len(incoming)}
}

// NotFound 包装 ErrNotFound 并带上标识符，便于日志定位
func NotFound(kind string, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
