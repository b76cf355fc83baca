// Package responses keeps the append-only audit log of user decisions and
// persists it to a durable store.
package responses

import (
	"context"
	"time"
)

// Response records one user decision. Entries are immutable once created;
// the list only grows and is never deduplicated.
type Response struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
	Field     string    `json:"field,omitempty"`
}

// Store persists a serialized response list under a session key. Each save
// overwrites the previous value for that key.
type Store interface {
	Load(ctx context.Context, key string) ([]Response, error)
	Save(ctx context.Context, key string, list []Response) error
	Close() error
}

// Latest returns the entry tagged with field that has the maximum
// timestamp, or nil when none exists.
func Latest(list []Response, field string) *Response {
	var latest *Response
	for i := range list {
		if list[i].Field != field {
			continue
		}
		if latest == nil || list[i].Timestamp.After(latest.Timestamp) {
			latest = &list[i]
		}
	}
	if latest == nil {
		return nil
	}
	c := *latest
	return &c
}
