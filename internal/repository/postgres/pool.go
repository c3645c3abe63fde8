// Package postgres contains PostgreSQL implementations of repository interfaces.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/and161185/kira-watch/internal/errs"
	"github.com/and161185/kira-watch/internal/model"
)

// PgxPool is a minimal abstraction over a Postgres connection pool,
// used by repositories. It is implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	// Exec executes a SQL command and returns the command tag.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	// Query executes a SELECT and returns a rows iterator.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	// QueryRow executes a query expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	// BeginTx starts a transaction with the provided options.
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
	// Close shuts down the pool and frees resources.
	Close()
}

// DB wraps pgxpool.Pool to satisfy repository constructors and allow testing.
type DB struct{ Pool PgxPool }

// New creates a new connection pool for the given DSN and checks connectivity.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() { db.Pool.Close() }

// Store bundles every repository implementation over one pool.
type Store struct {
	*TimerRepo
	*SOSRepo
	*CheckInRepo
	*SettingsRepo
	*UserRepo
}

// NewStore constructs all repositories over db.
func NewStore(db *DB) *Store {
	return &Store{
		TimerRepo:    NewTimerRepo(db),
		SOSRepo:      NewSOSRepo(db),
		CheckInRepo:  NewCheckInRepo(db),
		SettingsRepo: NewSettingsRepo(db),
		UserRepo:     NewUserRepo(db),
	}
}

// conflictIfNone maps a conditional write that matched nothing to errs.ErrStateConflict.
func conflictIfNone(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrStateConflict
	}
	return nil
}

// notFound maps pgx.ErrNoRows to errs.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	return err
}

// nullableLocation splits an optional location into nullable columns.
func nullableLocation(l *model.Location) (lat, lng *float64) {
	if l == nil {
		return nil, nil
	}
	return &l.Lat, &l.Lng
}
