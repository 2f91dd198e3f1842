package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gentle/pkg/ident"
	"gentle/pkg/types"
)

// ExpandHash 利用 Find 把短哈希扩展为完整的内容标识符
// 0 个匹配 -> ErrNotFound，多于 1 个 -> ErrAmbiguousHash
func ExpandHash(ctx context.Context, db ContentStore, prefix types.HashPrefix) (types.Hash, error) {
	if err := ident.ValidatePrefix(prefix); err != nil {
		return "", err
	}
	// 完整哈希直接返回 (性能最优)，存在性交给调用方的 Get
	if len(prefix) == types.HashLen {
		return types.Hash(prefix), nil
	}

	matches, err := db.Find(ctx, string(prefix))
	if err != nil {
		return "", fmt.Errorf("hash expansion failed: %w", err)
	}
	switch len(matches) {
	case 0:
		return "", NotFound("content prefix", string(prefix))
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %d objects", ErrAmbiguousHash, prefix, len(matches))
	}
}

// FilterPrefix 是内存型后端共用的 Find 实现：过滤 + 排序
func FilterPrefix[K ~string](keys []K, prefix string) []K {
	out := make([]K, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(string(k), prefix) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
