package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pgUniqueCode = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT      NOT NULL,
	key        TEXT      NOT NULL,
	seq        BIGSERIAL NOT NULL,
	body       JSONB     NOT NULL,
	PRIMARY KEY (collection, key)
);
CREATE INDEX IF NOT EXISTS documents_collection_seq_idx ON documents (collection, seq);
`

// PostgresStore keeps every collection in a single JSONB table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens a pgx-backed *sql.DB for dsn.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, schemaSQL)
		return err
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetAll(ctx context.Context, collection string) ([]Record, error) {
	return s.query(ctx, `
		SELECT key, body
		FROM documents
		WHERE collection = $1
		ORDER BY seq ASC
	`, collection)
}

func (s *PostgresStore) Find(ctx context.Context, collection, field string, value any) ([]Record, error) {
	want, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, `
		SELECT key, body
		FROM documents
		WHERE collection = $1 AND body -> $2::text = $3::jsonb
		ORDER BY seq ASC
	`, collection, field, string(want))
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) (Record, error) {
	var body []byte

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT body
			FROM documents
			WHERE collection = $1 AND key = $2
		`, collection, key).Scan(&body)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return Record{Key: key, Data: body}, nil
}

func (s *PostgresStore) Create(ctx context.Context, collection, key string, doc any) error {
	body, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	return s.insert(ctx, collection, key, body)
}

func (s *PostgresStore) Append(ctx context.Context, collection string, doc any) (string, error) {
	body, err := encodeDoc(doc)
	if err != nil {
		return "", err
	}
	key := uuid.NewString()
	if err := s.insert(ctx, collection, key, body); err != nil {
		return "", err
	}
	return key, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, key string, patch map[string]any) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}

	return s.execOne(ctx, `
		UPDATE documents
		SET body = body || $3::jsonb
		WHERE collection = $1 AND key = $2
	`, collection, key, string(body))
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	return s.execOne(ctx, `
		DELETE FROM documents
		WHERE collection = $1 AND key = $2
	`, collection, key)
}

func (s *PostgresStore) Increment(ctx context.Context, collection, key, field string, delta int64, opts ...IncrementOption) (int64, error) {
	o := buildIncrementOptions(opts)

	var floor any
	if o.floor != nil {
		floor = *o.floor
	}

	// A lost insert race on upsert falls back to the update path once.
	for attempt := 0; attempt < 2; attempt++ {
		next, ok, err := s.incrementExisting(ctx, collection, key, field, delta, floor)
		if err != nil {
			return 0, err
		}
		if ok {
			return next, nil
		}

		cur, err := s.currentInt(ctx, collection, key, field)
		if err == nil {
			return cur, ErrBelowFloor
		}
		if !errors.Is(err, ErrNotFound) {
			return 0, err
		}
		if !o.upsert {
			return 0, ErrNotFound
		}
		if !o.allows(delta) {
			return 0, ErrBelowFloor
		}

		f := fields{}
		f.setIntField(field, delta)
		body, err := f.encode()
		if err != nil {
			return 0, err
		}
		err = s.insert(ctx, collection, key, body)
		if err == nil {
			return delta, nil
		}
		if !errors.Is(err, ErrExists) {
			return 0, err
		}
	}
	return 0, ErrExists
}

func (s *PostgresStore) incrementExisting(ctx context.Context, collection, key, field string, delta int64, floor any) (int64, bool, error) {
	var next int64

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			UPDATE documents
			SET body = jsonb_set(body, ARRAY[$3::text], to_jsonb(COALESCE((body ->> $3::text)::bigint, 0) + $4::bigint))
			WHERE collection = $1 AND key = $2
			  AND ($5::bigint IS NULL OR COALESCE((body ->> $3::text)::bigint, 0) + $4::bigint >= $5::bigint)
			RETURNING (body ->> $3::text)::bigint
		`, collection, key, field, delta, floor).Scan(&next)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return next, true, nil
}

func (s *PostgresStore) currentInt(ctx context.Context, collection, key, field string) (int64, error) {
	var cur sql.NullInt64

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT (body ->> $3::text)::bigint
			FROM documents
			WHERE collection = $1 AND key = $2
		`, collection, key, field).Scan(&cur)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return cur.Int64, nil
}

func (s *PostgresStore) insert(ctx context.Context, collection, key string, body []byte) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO documents (collection, key, body)
			VALUES ($1, $2, $3::jsonb)
		`, collection, key, string(body))

		if err == nil {
			return nil
		}
		if isUniqueViolation(err) {
			return ErrExists
		}
		return err
	})
}

func (s *PostgresStore) execOne(ctx context.Context, query string, args ...any) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	var out []Record

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Record, 0, 16)
		for rows.Next() {
			var (
				key  string
				body []byte
			)
			if err := rows.Scan(&key, &body); err != nil {
				return err
			}
			out = append(out, Record{Key: key, Data: body})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func encodeDoc(doc any) ([]byte, error) {
	f, err := toFields(doc)
	if err != nil {
		return nil, err
	}
	return f.encode()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueCode
}
