package xbacking_test

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/cachekit/pkg/storage/xbacking"
)

func ExampleNewMemory() {
	ctx := context.Background()
	store := xbacking.NewMemory()
	defer store.Close()

	exp := time.Now().Add(time.Hour)
	_ = store.Upsert(ctx, "session:alice", []byte(`{"uid":1}`), &exp)

	rec, err := store.Get(ctx, "session:alice")
	if err != nil {
		fmt.Println("get:", err)
		return
	}
	fmt.Println(string(rec.Value))
	// Output:
	// {"uid":1}
}

func ExampleNewRetrying() {
	ctx := context.Background()

	// 生产环境里 next 通常是 Redis/SQLite/Mongo 连接器
	store, err := xbacking.NewRetrying(xbacking.NewMemory(),
		xbacking.WithAttempts(3),
		xbacking.WithDelay(50*time.Millisecond),
	)
	if err != nil {
		fmt.Println("wrap:", err)
		return
	}
	defer store.Close()

	_ = store.Upsert(ctx, "user:1", []byte("alice"), nil)
	rec, _ := store.Get(ctx, "user:1")
	fmt.Println(string(rec.Value))
	// Output:
	// alice
}
