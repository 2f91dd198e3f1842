package storage

import "errors"

// Bundle 是最简单的 DataStore：把任意两个 store 绑在一起
// 适合混合部署，例如 S3 存内容 + SQL 存指针
type Bundle struct {
	content  ContentStore
	pointers PointerStore
	closers  []func() error
}

var _ DataStore = (*Bundle)(nil)

// NewBundle 组合两个 store；closers 在 Close 时按逆序调用
func NewBundle(c ContentStore, p PointerStore, closers ...func() error) *Bundle {
	return &Bundle{content: c, pointers: p, closers: closers}
}

func (b *Bundle) ContentStore() ContentStore { return b.content }
func (b *Bundle) PointerStore() PointerStore { return b.pointers }

func (b *Bundle) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
