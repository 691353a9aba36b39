package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lingo-quiz/internal/resource"
)

// DocumentSource loads content JSONB from Postgres, keyed by the same
// relative paths the HTTP and directory sources use.
type DocumentSource struct {
	pool *pgxpool.Pool
}

func NewDocumentSource(pool *pgxpool.Pool) *DocumentSource {
	return &DocumentSource{pool: pool}
}

func (s *DocumentSource) Get(ctx context.Context, path string) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM documents WHERE path=$1`, path).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", path, resource.ErrNoDocument)
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return raw, nil
}

// Put stores or replaces the document at path. data must be valid JSON.
func (s *DocumentSource) Put(ctx context.Context, path string, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (path, data) VALUES ($1, $2::jsonb)
		 ON CONFLICT (path) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`,
		path, string(data))
	if err != nil {
		return fmt.Errorf("store document %s: %w", path, err)
	}
	return nil
}
