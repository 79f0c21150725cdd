package xlru

import (
	"fmt"
	"testing"
	"time"
)

// FuzzCache_Invariants 用随机操作序列驱动缓存，校验结构不变式：
// 条目数不超过容量，总权重不超过预算，Keys 与 Len 一致。
func FuzzCache_Invariants(f *testing.F) {
	f.Add([]byte{0, 1, 2, 3, 4, 5})
	f.Add([]byte("set-get-delete"))
	f.Add([]byte{255, 254, 0, 0, 128})

	f.Fuzz(func(t *testing.T, ops []byte) {
		clock := newFakeClock()
		c, err := New[int](Config{
			Capacity:   8,
			MaxWeight:  32,
			DefaultTTL: time.Minute,
			StaleGrace: time.Minute,
			Logger:     discardLogger(),
			Now:        clock.Now,
		})
		if err != nil {
			t.Fatal(err)
		}

		for i, op := range ops {
			key := fmt.Sprintf("k%d", op%16)
			switch op % 7 {
			case 0:
				c.Set(key, i, WithWeight(int64(op%5))) // 权重 0 会被拒绝
			case 1:
				c.Set(key, i, WithWeight(int64(op%5+1)))
			case 2:
				c.Get(key)
			case 3:
				c.Delete(key)
			case 4:
				c.GetStale(key)
			case 5:
				clock.Advance(time.Duration(op) * time.Second)
			default:
				c.RemoveExpired()
			}

			if got := c.Len(); got > 8 {
				t.Fatalf("op %d: Len = %d exceeds capacity", i, got)
			}
			if got := c.TotalWeight(); got > 32 {
				t.Fatalf("op %d: TotalWeight = %d exceeds budget", i, got)
			}
			if keys, length := c.Keys(), c.Len(); len(keys) != length {
				t.Fatalf("op %d: len(Keys) = %d, Len = %d", i, len(keys), length)
			}
		}
	})
}
