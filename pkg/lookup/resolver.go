// Package lookup 让调用方用不完整的标识符访问 DataStore
// 一个输入可能是指针名、完整的内容 Hash，或者二者之一的前缀
package lookup

import (
	"context"
	"fmt"
	"strings"

	"gentle/pkg/ident"
	"gentle/pkg/storage"
	"gentle/pkg/types"
)

type Kind int

const (
	KindContent Kind = iota + 1
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindPointer:
		return "pointer"
	default:
		return "unknown"
	}
}

// Item 是一次查找的命中
type Item struct {
	Kind Kind
	ID   string
}

func (i Item) String() string { return i.Kind.String() + ":" + i.ID }

// AmbiguousError 列出全部候选，CLI 据此提示用户
type AmbiguousError struct {
	Input      string
	Candidates []Item
}

func (e *AmbiguousError) Error() string {
	ids := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		ids[i] = c.String()
	}
	return fmt.Sprintf("%q matches %d items: %s", e.Input, len(e.Candidates), strings.Join(ids, ", "))
}

func (e *AmbiguousError) Unwrap() error { return storage.ErrAmbiguousHash }

// Value 是 Get 的结果：内容返回字节，指针返回目标 Hash
type Value struct {
	Item
	Data   []byte
	Target types.Hash
}

type Resolver struct {
	ds storage.DataStore
}

func NewResolver(ds storage.DataStore) *Resolver {
	return &Resolver{ds: ds}
}

// Find 在两个库里查找以 prefix 开头的标识符
// 指针在前，内容在后，各自有序
func (r *Resolver) Find(ctx context.Context, prefix string) ([]Item, error) {
	pointers, err := r.ds.PointerStore().Find(ctx, prefix)
	if err != nil {
		return nil, err
	}
	hashes, err := r.ds.ContentStore().Find(ctx, prefix)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(pointers)+len(hashes))
	for _, p := range pointers {
		items = append(items, Item{Kind: KindPointer, ID: string(p)})
	}
	for _, h := range hashes {
		items = append(items, Item{Kind: KindContent, ID: string(h)})
	}
	return items, nil
}

// Expand 把输入解析为唯一的 Item
// 1. 精确的指针名优先于更长的指针名
// 2. 完整且存在的内容 Hash；同名指针也存在时报歧义
// 3. 前缀：两个库合计恰好一个命中
func (r *Resolver) Expand(ctx context.Context, input string) (Item, error) {
	if input == "" {
		return Item{}, ident.Validate(input, ident.Pointer)
	}

	// 1. 精确指针
	var exact *Item
	if ident.ValidatePointer(types.PointerID(input)) == nil {
		ok, err := r.ds.PointerStore().Has(ctx, types.PointerID(input))
		if err != nil {
			return Item{}, err
		}
		if ok {
			exact = &Item{Kind: KindPointer, ID: input}
		}
	}

	// 2. 完整 Hash
	if h := types.Hash(input); h.IsValid() {
		ok, err := r.ds.ContentStore().Has(ctx, h)
		if err != nil {
			return Item{}, err
		}
		switch {
		case ok && exact != nil:
			return Item{}, &AmbiguousError{Input: input, Candidates: []Item{*exact, {Kind: KindContent, ID: input}}}
		case ok:
			return Item{Kind: KindContent, ID: input}, nil
		case exact != nil:
			return *exact, nil
		}
		return Item{}, storage.NotFound("content", input)
	}
	if exact != nil {
		return *exact, nil
	}

	// 3. 前缀
	var candidates []Item
	pointers, err := r.ds.PointerStore().Find(ctx, input)
	if err != nil {
		return Item{}, err
	}
	for _, p := range pointers {
		candidates = append(candidates, Item{Kind: KindPointer, ID: string(p)})
	}
	// 太短的前缀只会制造歧义，不参与内容匹配
	if ident.ValidatePrefix(types.HashPrefix(input)) == nil {
		hashes, err := r.ds.ContentStore().Find(ctx, input)
		if err != nil {
			return Item{}, err
		}
		for _, h := range hashes {
			candidates = append(candidates, Item{Kind: KindContent, ID: string(h)})
		}
	}

	switch len(candidates) {
	case 0:
		return Item{}, storage.NotFound("identifier", input)
	case 1:
		return candidates[0], nil
	default:
		return Item{}, &AmbiguousError{Input: input, Candidates: candidates}
	}
}

// ExpandContent 只在内容库中扩展
func (r *Resolver) ExpandContent(ctx context.Context, input string) (types.Hash, error) {
	return storage.ExpandHash(ctx, r.ds.ContentStore(), types.HashPrefix(input))
}

// Get 读取 Expand 命中的条目
func (r *Resolver) Get(ctx context.Context, input string) (Value, error) {
	item, err := r.Expand(ctx, input)
	if err != nil {
		return Value{}, err
	}

	v := Value{Item: item}
	switch item.Kind {
	case KindContent:
		v.Data, err = r.ds.ContentStore().Get(ctx, types.Hash(item.ID))
	case KindPointer:
		v.Target, err = r.ds.PointerStore().Get(ctx, types.PointerID(item.ID))
	}
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

// Contains 任意一个库里存在以 input 开头的条目即为 true
// 指针库更小，也更可能是查询目标，所以先查
func (r *Resolver) Contains(ctx context.Context, input string) (bool, error) {
	pointers, err := r.ds.PointerStore().Find(ctx, input)
	if err != nil {
		return false, err
	}
	if len(pointers) > 0 {
		return true, nil
	}
	hashes, err := r.ds.ContentStore().Find(ctx, input)
	if err != nil {
		return false, err
	}
	return len(hashes) > 0, nil
}

// Remove 删除 Expand 命中的条目；后端必须实现 storage.Deleter
func (r *Resolver) Remove(ctx context.Context, input string) (Item, error) {
	item, err := r.Expand(ctx, input)
	if err != nil {
		return Item{}, err
	}
	switch item.Kind {
	case KindContent:
		err = storage.Delete(ctx, r.ds.ContentStore(), types.Hash(item.ID))
	case KindPointer:
		err = storage.Delete(ctx, r.ds.PointerStore(), types.PointerID(item.ID))
	}
	return item, err
}
