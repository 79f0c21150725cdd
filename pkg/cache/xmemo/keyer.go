package xmemo

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Key 计算参数 arg 在前缀 prefix 下的记忆键。
//
// 参数先经 encoding/json 序列化（map 键按字典序输出，结构体按字段
// 声明序输出，两者都是确定的），再取 xxhash64 渲染为定宽十六进制。
// 相同参数在所有进程中产生相同的键，可用于跨实例共享与定向失效：
//
//	key, _ := xmemo.Key("profile:", userID)
//	store.Delete(ctx, key)
//
// 不可序列化的参数（channel、func、NaN 等）返回错误。
func Key[A any](prefix string, arg A) (string, error) {
	payload, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("xmemo: marshal argument: %w", err)
	}
	return prefix + renderHash(xxhash.Sum64(payload)), nil
}

const hexDigits = "0123456789abcdef"

// renderHash 把 64 位哈希渲染为 16 字符定宽十六进制。
// 定宽保证同一前缀下所有记忆键等长，前缀匹配不会误伤。
func renderHash(sum uint64) string {
	var buf [16]byte
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = hexDigits[sum&0xf]
		sum >>= 4
	}
	return string(buf[:])
}
