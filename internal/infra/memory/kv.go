package memory

import (
	"context"
	"fmt"
	"sync"

	"lingo-quiz/internal/domain"
)

// KV is an in-memory implementation of store.KV with an optional byte quota
// over the sum of key and value sizes. Zero quota means unlimited.
type KV struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int
	used  int
}

func NewKV(quota int) *KV {
	return &KV{
		data:  make(map[string][]byte),
		quota: quota,
	}
}

func (s *KV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMulti(ctx, map[string][]byte{key: value})
}

func (s *KV) SetMulti(_ context.Context, values map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used
	for key, value := range values {
		if old, ok := s.data[key]; ok {
			used -= len(key) + len(old)
		}
		used += len(key) + len(value)
	}
	if s.quota > 0 && used > s.quota {
		return &domain.PersistenceError{
			Kind: domain.PersistenceQuotaExceeded,
			Key:  firstKey(values),
			Err:  fmt.Errorf("%d bytes over a %d byte quota", used, s.quota),
		}
	}

	for key, value := range values {
		s.data[key] = append([]byte(nil), value...)
	}
	s.used = used
	return nil
}

func (s *KV) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.data[key]; ok {
		s.used -= len(key) + len(old)
		delete(s.data, key)
	}
	return nil
}

// Used reports the bytes currently counted against the quota.
func (s *KV) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

func firstKey(values map[string][]byte) string {
	first := ""
	for key := range values {
		if first == "" || key < first {
			first = key
		}
	}
	return first
}
