package meta

import "time"

// ContentModel 内容库的一行：Hash 是主键，Data 是原始字节
type ContentModel struct {
	Hash string `gorm:"primaryKey;type:char(64)"`

	// Data 在 Postgres 中是 bytea，在 SQLite 中是 blob
	Data []byte

	Size      int64
	CreatedAt time.Time
}

func (ContentModel) TableName() string {
	return "contents"
}

// PointerModel 存储可变指针 (例如 "latest" 或 "refs/heads/main")
type PointerModel struct {
	// Name 是主键
	Name string `gorm:"primaryKey;type:varchar(255)"`

	// Target 指向当前的内容 Hash
	Target string `gorm:"type:char(64);not null"`

	// Version 用于乐观锁并发控制 (CAS)
	// 每次更新时 +1，防止并发覆盖
	Version int64 `gorm:"default:1"`

	UpdatedAt time.Time
}

func (PointerModel) TableName() string {
	return "pointers"
}

// Models 返回需要迁移的全部表
func Models() []any {
	return []any{&ContentModel{}, &PointerModel{}}
}
