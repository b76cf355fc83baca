package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists response lists in PostgreSQL for server deploys.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := `CREATE TABLE IF NOT EXISTS response_logs (
		session_key TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, key string) ([]Response, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM response_logs WHERE session_key=$1`, key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load response log: %w", err)
	}

	var list []Response
	if err := json.Unmarshal(payload, &list); err != nil {
		return nil, fmt.Errorf("decode response log: %w", err)
	}
	return list, nil
}

func (s *PostgresStore) Save(ctx context.Context, key string, list []Response) error {
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode response log: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO response_logs (session_key, payload, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_key) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`,
		key, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save response log: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
