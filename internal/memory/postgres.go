package memory

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	kindTurn   = "turn"
	kindIntent = "intent"
)

// PostgresStore keeps session history in a single table. Appends for one
// session are serialized with a transaction-scoped advisory lock.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   *sql.DB
	ttl  time.Duration
}

func NewPostgresStore(ctx context.Context, databaseURL string, ttl time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		pool.Close()
		return nil, err
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore{pool: pool, db: db, ttl: ttl}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	return s.append(ctx, sessionID, kindTurn, turn, MaxTurns)
}

func (s *PostgresStore) AppendIntent(ctx context.Context, sessionID string, rec IntentRecord) error {
	return s.append(ctx, sessionID, kindIntent, rec, MaxIntents)
}

func (s *PostgresStore) append(ctx context.Context, sessionID, kind string, v any, limit int) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	expiresAt := time.Now().UTC().Add(s.ttl)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sessionID+":"+kind); err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO context_entries (session_id, kind, payload, expires_at) VALUES ($1, $2, $3, $4)`,
			sessionID, kind, string(payload), expiresAt,
		); err != nil {
			return fmt.Errorf("insert %s: %w", kind, err)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM context_entries
			 WHERE session_id = $1 AND kind = $2 AND id NOT IN (
				SELECT id FROM context_entries
				WHERE session_id = $1 AND kind = $2
				ORDER BY id DESC LIMIT $3
			 )`,
			sessionID, kind, limit,
		); err != nil {
			return fmt.Errorf("trim %s: %w", kind, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE context_entries SET expires_at = $3 WHERE session_id = $1 AND kind = $2`,
			sessionID, kind, expiresAt,
		); err != nil {
			return fmt.Errorf("refresh ttl: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	if limit > MaxTurns {
		limit = MaxTurns
	}
	return queryEntries[Turn](ctx, s.pool, sessionID, kindTurn, limit)
}

func (s *PostgresStore) Intents(ctx context.Context, sessionID string) ([]IntentRecord, error) {
	return queryEntries[IntentRecord](ctx, s.pool, sessionID, kindIntent, MaxIntents)
}

func queryEntries[T any](ctx context.Context, pool *pgxpool.Pool, sessionID, kind string, limit int) ([]T, error) {
	rows, err := pool.Query(ctx,
		`SELECT payload FROM context_entries
		 WHERE session_id = $1 AND kind = $2 AND expires_at > now()
		 ORDER BY id DESC LIMIT $3`,
		sessionID, kind, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	defer rows.Close()

	items := make([]T, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		var v T
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			continue
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}

	// Reverse into chronological order for prompt coherence.
	reverse(items)
	return items, nil
}

// Sweep deletes expired rows.
func (s *PostgresStore) Sweep(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM context_entries WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("sweep context entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	err := s.db.Close()
	s.pool.Close()
	return err
}
