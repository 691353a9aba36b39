package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"lingo-quiz/internal/domain"
)

// KV is a Redis implementation of store.KV. Keys are namespaced with a
// prefix and never expire. SetMulti runs in MULTI/EXEC so either every
// value is written or none is.
type KV struct {
	client *redis.Client
	prefix string
}

func NewKV(client *redis.Client, prefix string) *KV {
	return &KV{client: client, prefix: prefix}
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(key, err)
	}
	return data, nil
}

func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMulti(ctx, map[string][]byte{key: value})
}

func (s *KV) SetMulti(ctx context.Context, values map[string][]byte) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cmds, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Set(ctx, s.key(k), values[k], 0)
		}
		return nil
	})
	if err != nil {
		return mapError(strings.Join(keys, ","), queuedError(cmds, err))
	}
	return nil
}

func (s *KV) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return mapError(key, err)
	}
	return nil
}

func (s *KV) key(k string) string {
	return s.prefix + k
}

// queuedError digs out the reason behind an aborted transaction. Redis
// rejects a queued write at maxmemory with OOM and then answers EXEC with
// EXECABORT, so the OOM only survives on the individual command.
func queuedError(cmds []redis.Cmder, err error) error {
	if !strings.HasPrefix(err.Error(), "EXECABORT") {
		return err
	}
	for _, cmd := range cmds {
		if cerr := cmd.Err(); cerr != nil && isOOM(cerr) {
			return cerr
		}
	}
	return err
}

// mapError turns a maxmemory rejection into a quota error.
func mapError(key string, err error) error {
	if isOOM(err) {
		return &domain.PersistenceError{Kind: domain.PersistenceQuotaExceeded, Key: key, Err: err}
	}
	return fmt.Errorf("redis %s: %w", key, err)
}

func isOOM(err error) bool {
	return strings.HasPrefix(err.Error(), "OOM ")
}
