// scenario 演示最小的使用流程：两段内容、一个指针、一次移动
// 用法: go run ./experiments/scenario [disk-dir]
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"gentle/pkg/storage"
	"gentle/pkg/storage/disk"
	"gentle/pkg/storage/mem"
)

func main() {
	ctx := context.Background()

	var ds storage.DataStore = mem.New()
	if len(os.Args) > 1 {
		d, err := disk.New(os.Args[1], disk.Options{Compression: true, Level: 2})
		if err != nil {
			log.Fatal(err)
		}
		ds = d
	}
	defer ds.Close()

	content, pointers := ds.ContentStore(), ds.PointerStore()

	// 1. 两段内容
	h1, err := content.Put(ctx, []byte("hello"))
	if err != nil {
		log.Fatal(err)
	}
	h2, err := content.Put(ctx, []byte("world"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("📦 hello -> %s\n📦 world -> %s\n", h1, h2)

	// 2. 创建指针
	prev, err := pointers.Put(ctx, "latest", h1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("📌 latest created (previous: %q)\n", prev)

	// 3. 移动指针
	prev, err = pointers.Put(ctx, "latest", h2)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("📌 latest moved (previous: %s)\n", prev.Short())

	// 4. 解引用
	target, err := pointers.Get(ctx, "latest")
	if err != nil {
		log.Fatal(err)
	}
	data, err := content.Get(ctx, target)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("✅ latest = %q\n", data)
}
