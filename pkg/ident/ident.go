// Package ident decides whether a candidate identifier is well-formed.
//
// Two grammars exist: content identifiers (lowercase hex SHA-256, exactly 64
// characters) and pointer identifiers (caller-chosen, 1..255 bytes of
// [A-Za-z0-9._-] with "/" as a segment separator). A third grammar, Prefix,
// covers abbreviated content identifiers typed by humans.
package ident

import (
	"errors"
	"fmt"
	"strings"

	"gentle/pkg/types"
)

// ErrInvalidIdentifier 所有校验失败都能用 errors.Is 匹配到这个哨兵
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Grammar 标识符语法
type Grammar int

const (
	Content Grammar = iota + 1
	Pointer
	Prefix
)

func (g Grammar) String() string {
	switch g {
	case Content:
		return "content"
	case Pointer:
		return "pointer"
	case Prefix:
		return "prefix"
	default:
		return fmt.Sprintf("grammar(%d)", int(g))
	}
}

// InvalidIdentifierError 携带被拒绝的标识符和原因
// Grammar 字段让调用方区分 PointerStore.Put 的哪个参数出错
type InvalidIdentifierError struct {
	Grammar Grammar
	ID      string
	Reason  string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s identifier %q: %s", e.Grammar, clip(e.ID), e.Reason)
}

func (e *InvalidIdentifierError) Unwrap() error { return ErrInvalidIdentifier }

// Validate 校验 id 是否符合给定语法。纯函数，无副作用。
func Validate(id string, g Grammar) error {
	var reason string
	switch g {
	case Content:
		reason = checkContent(id)
	case Pointer:
		reason = checkPointer(id)
	case Prefix:
		reason = checkPrefix(id)
	default:
		reason = "unknown grammar"
	}
	if reason == "" {
		return nil
	}
	return &InvalidIdentifierError{Grammar: g, ID: id, Reason: reason}
}

func ValidateHash(h types.Hash) error { return Validate(string(h), Content) }

func ValidatePointer(p types.PointerID) error { return Validate(string(p), Pointer) }

func ValidatePrefix(p types.HashPrefix) error { return Validate(string(p), Prefix) }

// GrammarOf 从错误中取出被违反的语法；不是校验错误时返回 0
func GrammarOf(err error) Grammar {
	var ie *InvalidIdentifierError
	if errors.As(err, &ie) {
		return ie.Grammar
	}
	return 0
}

func checkContent(id string) string {
	if len(id) != types.HashLen {
		return fmt.Sprintf("length must be %d, got %d", types.HashLen, len(id))
	}
	if i := strings.IndexFunc(id, func(r rune) bool { return !isLowerHex(r) }); i >= 0 {
		return fmt.Sprintf("non-hex character at offset %d", i)
	}
	return ""
}

func checkPrefix(id string) string {
	if len(id) < types.MinPrefixLen {
		return fmt.Sprintf("prefix too short (min %d)", types.MinPrefixLen)
	}
	if len(id) > types.HashLen {
		return fmt.Sprintf("prefix longer than %d", types.HashLen)
	}
	if i := strings.IndexFunc(id, func(r rune) bool { return !isLowerHex(r) }); i >= 0 {
		return fmt.Sprintf("non-hex character at offset %d", i)
	}
	return ""
}

func checkPointer(id string) string {
	if id == "" {
		return "empty"
	}
	if len(id) > types.MaxPointerLen {
		return fmt.Sprintf("longer than %d bytes", types.MaxPointerLen)
	}
	for i := 0; i < len(id); i++ {
		if !isPointerByte(id[i]) {
			return fmt.Sprintf("disallowed byte 0x%02x at offset %d", id[i], i)
		}
	}
	for _, seg := range strings.Split(id, "/") {
		switch seg {
		case "":
			return "empty path segment"
		case ".", "..":
			return "relative path segment"
		}
	}
	return ""
}

func isLowerHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}

func isPointerByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.', c == '_', c == '-', c == '/':
		return true
	}
	return false
}

func clip(s string) string {
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
