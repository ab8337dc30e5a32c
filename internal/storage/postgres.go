package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is an interface that both pgxpool.Pool and pgx.Tx implement
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Store is the PostgreSQL storage backend
type Store struct {
	pool *pgxpool.Pool
	db   DBTX
}

// New connects to PostgreSQL
func New(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	// One device, one writer; a small pool is plenty.
	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, db: pool}, nil
}

// NewWithDB builds a Store on an existing connection or transaction
func NewWithDB(db DBTX) *Store {
	return &Store{db: db}
}

// Close closes the database connection pool
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// States returns the device state repository
func (s *Store) States() StateRepository {
	return NewStateRepository(s)
}

// Safes returns the safe repository
func (s *Store) Safes() SafeRepository {
	return NewSafeRepository(s)
}

// Keys returns the owner key repository
func (s *Store) Keys() KeyRepository {
	return NewOwnerKeyRepository(s)
}

var _ Backend = (*Store)(nil)
