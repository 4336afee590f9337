package seen

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore keeps the seen-set as a single JSONB row in an admin
// key-value table. Used when several notifier replicas must share state.
type PostgresStore struct {
	pool   *pgxpool.Pool
	key    string
	logger *zap.Logger
}

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewPostgresStore(pool *pgxpool.Pool, key string, logger *zap.Logger) *PostgresStore {
	if key == "" {
		key = DefaultKey
	}
	return &PostgresStore{pool: pool, key: key, logger: logger}
}

// EnsureSchema creates the backing table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS admin_kv (
			key   TEXT PRIMARY KEY,
			value JSONB NOT NULL
		)`)
	return err
}

func (s *PostgresStore) Load(ctx context.Context) ([]string, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM admin_kv WHERE key=$1`, s.key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		s.logger.Warn("seen-set row corrupted, starting empty",
			zap.String("key", s.key),
			zap.Error(err),
		)
		return nil, nil
	}
	return ids, nil
}

func (s *PostgresStore) Save(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO admin_kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value`,
		s.key, data,
	)
	return err
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM admin_kv WHERE key=$1`, s.key)
	return err
}
