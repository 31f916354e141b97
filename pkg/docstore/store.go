// Package docstore is a small document database abstraction: named
// collections of JSON documents addressed by string keys.
//
// Three backends implement Store: MemStore (in process), PostgresStore
// (JSONB rows) and RedisStore (JSON strings plus a sorted-set index).
// Increment is atomic on every backend, which is what callers rely on for
// counters and stock levels.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("docstore: document not found")
	ErrExists     = errors.New("docstore: document already exists")
	ErrBelowFloor = errors.New("docstore: value would drop below floor")
	ErrNotInteger = errors.New("docstore: field is not an integer")
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

// Record is a stored document and its key.
type Record struct {
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
}

type Store interface {
	// GetAll returns every document of a collection in insertion order.
	GetAll(ctx context.Context, collection string) ([]Record, error)
	Get(ctx context.Context, collection, key string) (Record, error)
	// Find returns documents whose top-level field equals value.
	Find(ctx context.Context, collection, field string, value any) ([]Record, error)
	Create(ctx context.Context, collection, key string, doc any) error
	// Update merges patch into the top level of an existing document.
	Update(ctx context.Context, collection, key string, patch map[string]any) error
	Delete(ctx context.Context, collection, key string) error
	// Append stores doc under a generated key and returns that key.
	Append(ctx context.Context, collection string, doc any) (string, error)
	// Increment atomically adds delta to an integer field and returns the
	// new value. With WithFloor, a result below the floor is not written and
	// ErrBelowFloor is returned together with the current value.
	Increment(ctx context.Context, collection, key, field string, delta int64, opts ...IncrementOption) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

type incrementOptions struct {
	floor  *int64
	upsert bool
}

type IncrementOption func(*incrementOptions)

// WithFloor rejects increments whose result would be lower than min.
func WithFloor(min int64) IncrementOption {
	return func(o *incrementOptions) { o.floor = &min }
}

// WithUpsert creates the document as {field: delta} when it does not exist.
func WithUpsert() IncrementOption {
	return func(o *incrementOptions) { o.upsert = true }
}

func buildIncrementOptions(opts []IncrementOption) incrementOptions {
	var o incrementOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o incrementOptions) allows(v int64) bool {
	return o.floor == nil || v >= *o.floor
}

// Decode unmarshals the record body into v.
func Decode(rec Record, v any) error {
	return json.Unmarshal(rec.Data, v)
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
