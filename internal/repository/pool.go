// Package repository is the single Store Facade fronting Postgres for every
// other component (spec.md §4.H). It owns the connection pool, schema
// migrations, and all CRUD; nothing outside this package issues SQL.
// Grounded on reposearch's pgx/v5 + pgxpool Store and on the teacher's own
// repository layer's pool-sizing/timeout conventions.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"srg/internal/apperr"
	"srg/internal/config"
)

// Store wraps a pgxpool.Pool and implements every component's storage
// needs. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a pool against cfg.DatabaseURL, sized per cfg.Storage, and runs
// pending migrations before returning.
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDatabaseError, "parse database url", "check DATABASE_URL", err)
	}
	if cfg.Storage.PoolSize > 0 {
		poolCfg.MaxConns = int32(cfg.Storage.PoolSize)
	}
	poolCfg.ConnConfig.ConnectTimeout = cfg.Storage.BusyTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDatabaseError, "open connection pool", "check database connectivity", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx, cfg.Embed.Dimension); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool. Safe to call once during shutdown.
func (s *Store) Close() { s.pool.Close() }

// Ping verifies connectivity within a bounded timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return apperr.Wrap(apperr.CodeDatabaseError, "ping database", "check database connectivity", err)
	}
	return nil
}

// Migration is one forward-only, transactional schema step.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

func (s *Store) migrate(ctx context.Context, embedDim int) error {
	if _, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version     INT PRIMARY KEY,
  name        TEXT NOT NULL,
  applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return apperr.Wrap(apperr.CodeDatabaseError, "create schema_migrations", "", err)
	}

	applied := map[int]bool{}
	rows, err := s.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return apperr.Wrap(apperr.CodeDatabaseError, "read schema_migrations", "", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return apperr.Wrap(apperr.CodeDatabaseError, "scan schema_migrations", "", err)
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range Migrations(embedDim) {
		if applied[m.Version] {
			continue
		}
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return apperr.Wrap(apperr.CodeDatabaseError, "begin migration tx", "", err)
		}
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			tx.Rollback(ctx)
			return apperr.Wrap(apperr.CodeDatabaseError, fmt.Sprintf("apply migration %d (%s)", m.Version, m.Name), "", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
			tx.Rollback(ctx)
			return apperr.Wrap(apperr.CodeDatabaseError, "record migration", "", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return apperr.Wrap(apperr.CodeDatabaseError, "commit migration tx", "", err)
		}
	}
	return nil
}
