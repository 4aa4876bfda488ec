package keystore

import "context"

// Store 是按字符串 key 存取字节值的持久化能力。
// 上层用它缓存委托链和基础身份，key 的构造由上层负责。
type Store interface {
	// Get 返回 key 对应的值；不存在时第二个返回值为 false，不算错误。
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set 写入或覆盖 key 对应的值。
	Set(ctx context.Context, key string, value []byte) error
}
