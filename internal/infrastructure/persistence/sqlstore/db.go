// Package sqlstore carries the ambient transaction used by repositories.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/pkg/database"
)

type contextKey string

const txKey contextKey = "tx"

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB implements port.TransactionManager and routes repository queries to the
// transaction stored in the context, when there is one. Queries are written
// with ? placeholders and rebound for the driver.
type DB struct {
	db     *database.DB
	logger *zap.Logger
}

// NewDB creates a new database wrapper
func NewDB(db *database.DB, logger *zap.Logger) *DB {
	return &DB{
		db:     db,
		logger: logger,
	}
}

// WithTransaction runs fn inside a transaction. Nested calls join the outer
// transaction.
func (s *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if extractTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			s.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// InTransaction reports whether ctx carries an open transaction
func InTransaction(ctx context.Context) bool {
	return extractTx(ctx) != nil
}

func extractTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return nil
}

func (s *DB) executor(ctx context.Context) Executor {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return s.db.DB
}

// Driver returns the underlying driver name
func (s *DB) Driver() string {
	return s.db.Driver()
}

// ExecContext executes a statement on the ambient transaction or the pool
func (s *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.executor(ctx).ExecContext(ctx, s.db.Rebind(query), args...)
}

// QueryContext runs a query on the ambient transaction or the pool
func (s *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.executor(ctx).QueryContext(ctx, s.db.Rebind(query), args...)
}

// QueryRowContext runs a single-row query on the ambient transaction or the pool
func (s *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.executor(ctx).QueryRowContext(ctx, s.db.Rebind(query), args...)
}

// Insert executes an INSERT and returns the generated id column
func (s *DB) Insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	if s.db.Driver() == database.DriverPostgres {
		var id int64
		if err := s.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := s.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// LockClause returns the row-locking suffix for SELECTs that precede an
// update. SQLite transactions already hold the write lock from BEGIN.
func (s *DB) LockClause() string {
	if s.db.Driver() == database.DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

var _ port.TransactionManager = (*DB)(nil)
