package docstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const maxTxAttempts = 16

// RedisStore keeps each document as a JSON string and each collection as a
// sorted set of keys scored by insertion sequence. Keys of one collection
// share a hash tag so multi-key transactions stay on one cluster slot.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) docKey(collection, key string) string {
	return s.prefix + "{" + collection + "}:doc:" + key
}

func (s *RedisStore) indexKey(collection string) string {
	return s.prefix + "{" + collection + "}:idx"
}

func (s *RedisStore) seqKey(collection string) string {
	return s.prefix + "{" + collection + "}:seq"
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.rdb.Ping(ctx).Err()
	})
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) GetAll(ctx context.Context, collection string) ([]Record, error) {
	var out []Record

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		keys, err := s.rdb.ZRange(ctx, s.indexKey(collection), 0, -1).Result()
		if err != nil {
			return err
		}
		out = make([]Record, 0, len(keys))
		if len(keys) == 0 {
			return nil
		}

		docKeys := make([]string, len(keys))
		for i, k := range keys {
			docKeys[i] = s.docKey(collection, k)
		}
		vals, err := s.rdb.MGet(ctx, docKeys...).Result()
		if err != nil {
			return err
		}
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				continue
			}
			out = append(out, Record{Key: keys[i], Data: json.RawMessage(str)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, collection, key string) (Record, error) {
	var raw []byte

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		raw, err = s.rdb.Get(ctx, s.docKey(collection, key)).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return Record{Key: key, Data: raw}, nil
}

func (s *RedisStore) Find(ctx context.Context, collection, field string, value any) ([]Record, error) {
	want, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	all, err := s.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(all))
	for _, rec := range all {
		f, err := parseFields(rec.Data)
		if err != nil {
			return nil, err
		}
		if f.equals(field, want) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *RedisStore) Create(ctx context.Context, collection, key string, doc any) error {
	f, err := toFields(doc)
	if err != nil {
		return err
	}

	dk := s.docKey(collection, key)
	return s.watch(ctx, func(ctx context.Context, tx *redis.Tx) error {
		n, err := tx.Exists(ctx, dk).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrExists
		}
		return s.insertTx(ctx, tx, collection, key, f)
	}, dk)
}

func (s *RedisStore) Append(ctx context.Context, collection string, doc any) (string, error) {
	key := uuid.NewString()
	if err := s.Create(ctx, collection, key, doc); err != nil {
		return "", err
	}
	return key, nil
}

func (s *RedisStore) Update(ctx context.Context, collection, key string, patch map[string]any) error {
	dk := s.docKey(collection, key)
	return s.watch(ctx, func(ctx context.Context, tx *redis.Tx) error {
		f, err := s.load(ctx, tx, dk)
		if err != nil {
			return err
		}
		if err := f.merge(patch); err != nil {
			return err
		}
		body, err := f.encode()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, dk, []byte(body), 0)
			return nil
		})
		return err
	}, dk)
}

func (s *RedisStore) Delete(ctx context.Context, collection, key string) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var del *redis.IntCmd
		_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			del = pipe.Del(ctx, s.docKey(collection, key))
			pipe.ZRem(ctx, s.indexKey(collection), key)
			return nil
		})
		if err != nil {
			return err
		}
		if del.Val() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *RedisStore) Increment(ctx context.Context, collection, key, field string, delta int64, opts ...IncrementOption) (int64, error) {
	o := buildIncrementOptions(opts)
	dk := s.docKey(collection, key)

	var result int64
	err := s.watch(ctx, func(ctx context.Context, tx *redis.Tx) error {
		f, err := s.load(ctx, tx, dk)
		if errors.Is(err, ErrNotFound) && o.upsert {
			if !o.allows(delta) {
				result = 0
				return ErrBelowFloor
			}
			f = fields{}
			f.setIntField(field, delta)
			result = delta
			return s.insertTx(ctx, tx, collection, key, f)
		}
		if err != nil {
			return err
		}

		cur, err := f.intField(field)
		if err != nil {
			return err
		}
		next := cur + delta
		if !o.allows(next) {
			result = cur
			return ErrBelowFloor
		}

		f.setIntField(field, next)
		body, err := f.encode()
		if err != nil {
			return err
		}
		result = next
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, dk, []byte(body), 0)
			return nil
		})
		return err
	}, dk)

	if err != nil && !errors.Is(err, ErrBelowFloor) {
		return 0, err
	}
	return result, err
}

func (s *RedisStore) load(ctx context.Context, tx *redis.Tx, dk string) (fields, error) {
	raw, err := tx.Get(ctx, dk).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return parseFields(raw)
}

func (s *RedisStore) insertTx(ctx context.Context, tx *redis.Tx, collection, key string, f fields) error {
	body, err := f.encode()
	if err != nil {
		return err
	}
	seq, err := tx.Incr(ctx, s.seqKey(collection)).Result()
	if err != nil {
		return err
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(collection, key), []byte(body), 0)
		pipe.ZAdd(ctx, s.indexKey(collection), redis.Z{Score: float64(seq), Member: key})
		return nil
	})
	return err
}

// watch runs fn as an optimistic transaction on keys, repeating it while
// another client modifies a watched key between read and commit. fn gets the
// bounded context and must issue every command with it.
func (s *RedisStore) watch(ctx context.Context, fn func(context.Context, *redis.Tx) error, keys ...string) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		txFn := func(tx *redis.Tx) error { return fn(ctx, tx) }
		for i := 0; i < maxTxAttempts; i++ {
			err := s.rdb.Watch(ctx, txFn, keys...)
			if errors.Is(err, redis.TxFailedErr) {
				continue
			}
			return err
		}
		return redis.TxFailedErr
	})
}
