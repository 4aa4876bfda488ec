package keystore

import (
	"context"
	"sync"
)

// Memory 是进程内实现，用于测试和未配置持久化的环境。
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory 构造空的内存存储。
func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

// Get 返回 key 对应值的副本。
func (s *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Set 写入 key 的值副本。
func (s *Memory) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

// Len 返回条目数，仅供测试使用。
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
