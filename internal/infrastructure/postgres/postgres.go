package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Database wraps the pgx connection pool and a database/sql view of it.
type Database struct {
	Pool *pgxpool.Pool
	sql  *sql.DB
}

// New establishes a new connection pool against the provided DSN.
func New(ctx context.Context, dsn string) (*Database, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Database{Pool: pool, sql: stdlib.OpenDBFromPool(pool)}, nil
}

// SQL exposes the pool through database/sql for goose and the revocation store.
func (db *Database) SQL() *sql.DB {
	return db.sql
}

// Close drains the connection pool.
func (db *Database) Close() {
	if db == nil {
		return
	}
	if db.sql != nil {
		_ = db.sql.Close()
	}
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
