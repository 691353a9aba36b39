package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"lingo-quiz/internal/domain"
)

type kvRow struct {
	bun.BaseModel `bun:"table:kv"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,type:jsonb,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// KV stores progress documents in the kv table. SetMulti runs in one
// transaction. A positive quota caps the total size of keys and values;
// a write that would exceed it is rolled back.
type KV struct {
	db    *bun.DB
	quota int
}

func NewKV(db *bun.DB, quota int) *KV {
	return &KV{db: db, quota: quota}
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	row := new(kvRow)
	err := s.db.NewSelect().Model(row).Where("key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return []byte(row.Value), nil
}

func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMulti(ctx, map[string][]byte{key: value})
}

func (s *KV) SetMulti(ctx context.Context, values map[string][]byte) error {
	rows := make([]kvRow, 0, len(values))
	for k, v := range values {
		rows = append(rows, kvRow{Key: k, Value: string(v), UpdatedAt: time.Now().UTC()})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("postgres set: %w", err)
		}
		if s.quota <= 0 {
			return nil
		}

		var used int
		err = tx.NewSelect().
			Model((*kvRow)(nil)).
			ColumnExpr("COALESCE(SUM(octet_length(key) + octet_length(value::text)), 0)").
			Scan(ctx, &used)
		if err != nil {
			return fmt.Errorf("postgres usage: %w", err)
		}
		if used > s.quota {
			keys := make([]string, 0, len(rows))
			for _, r := range rows {
				keys = append(keys, r.Key)
			}
			return &domain.PersistenceError{
				Kind: domain.PersistenceQuotaExceeded,
				Key:  strings.Join(keys, ","),
				Err:  fmt.Errorf("%d of %d bytes", used, s.quota),
			}
		}
		return nil
	})
}

func (s *KV) Remove(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().Model((*kvRow)(nil)).Where("key = ?", key).Exec(ctx)
	if err != nil {
		return fmt.Errorf("postgres remove %s: %w", key, err)
	}
	return nil
}
