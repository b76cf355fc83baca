package responses

import (
	"context"
	"strings"
)

// NewStore picks the durable backend: postgres when DATABASE_URL is
// configured, a local SQLite file when a path is given, in-memory otherwise.
func NewStore(ctx context.Context, databaseURL, dbPath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(dbPath) != "" {
		return NewSQLiteStore(dbPath)
	}
	return NewMemoryStore(), nil
}
