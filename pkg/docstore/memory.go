package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memDoc struct {
	seq    uint64
	fields fields
}

// MemStore keeps collections in process memory. It is the default backend
// for local runs and the one used by tests.
type MemStore struct {
	mu    sync.RWMutex
	seq   uint64
	colls map[string]map[string]*memDoc
}

func NewMemStore() *MemStore {
	return &MemStore{colls: map[string]map[string]*memDoc{}}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Close() error { return nil }

func (s *MemStore) GetAll(ctx context.Context, collection string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(collection, func(fields) bool { return true })
}

func (s *MemStore) Get(ctx context.Context, collection, key string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.colls[collection][key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return d.record(key)
}

func (s *MemStore) Find(ctx context.Context, collection, field string, value any) ([]Record, error) {
	want, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(collection, func(f fields) bool { return f.equals(field, want) })
}

func (s *MemStore) Create(ctx context.Context, collection, key string, doc any) error {
	f, err := toFields(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.colls[collection][key]; ok {
		return ErrExists
	}
	s.put(collection, key, f)
	return nil
}

func (s *MemStore) Update(ctx context.Context, collection, key string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.colls[collection][key]
	if !ok {
		return ErrNotFound
	}

	next := make(fields, len(d.fields)+len(patch))
	for k, v := range d.fields {
		next[k] = v
	}
	if err := next.merge(patch); err != nil {
		return err
	}
	d.fields = next
	return nil
}

func (s *MemStore) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.colls[collection][key]; !ok {
		return ErrNotFound
	}
	delete(s.colls[collection], key)
	return nil
}

func (s *MemStore) Append(ctx context.Context, collection string, doc any) (string, error) {
	f, err := toFields(doc)
	if err != nil {
		return "", err
	}

	key := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(collection, key, f)
	return key, nil
}

func (s *MemStore) Increment(ctx context.Context, collection, key, field string, delta int64, opts ...IncrementOption) (int64, error) {
	o := buildIncrementOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.colls[collection][key]
	if !ok {
		if !o.upsert {
			return 0, ErrNotFound
		}
		if !o.allows(delta) {
			return 0, ErrBelowFloor
		}
		f := fields{}
		f.setIntField(field, delta)
		s.put(collection, key, f)
		return delta, nil
	}

	cur, err := d.fields.intField(field)
	if err != nil {
		return 0, err
	}

	next := cur + delta
	if !o.allows(next) {
		return cur, ErrBelowFloor
	}

	d.fields.setIntField(field, next)
	return next, nil
}

func (s *MemStore) put(collection, key string, f fields) {
	c, ok := s.colls[collection]
	if !ok {
		c = map[string]*memDoc{}
		s.colls[collection] = c
	}
	s.seq++
	c[key] = &memDoc{seq: s.seq, fields: f}
}

func (s *MemStore) collect(collection string, keep func(fields) bool) ([]Record, error) {
	c := s.colls[collection]

	keys := make([]string, 0, len(c))
	for k, d := range c {
		if keep(d.fields) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return c[keys[i]].seq < c[keys[j]].seq })

	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		rec, err := c[k].record(k)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (d *memDoc) record(key string) (Record, error) {
	raw, err := d.fields.encode()
	if err != nil {
		return Record{}, err
	}
	return Record{Key: key, Data: raw}, nil
}
