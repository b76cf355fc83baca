package responses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists response lists in a local SQLite file, one row per
// session key holding the serialized list.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS response_logs (
		session_key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) ([]Response, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM response_logs WHERE session_key = ?`, key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load response log: %w", err)
	}

	var list []Response
	if err := json.Unmarshal([]byte(payload), &list); err != nil {
		return nil, fmt.Errorf("decode response log: %w", err)
	}
	return list, nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, list []Response) error {
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode response log: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO response_logs (session_key, payload, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_key) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`,
		key, string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save response log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
