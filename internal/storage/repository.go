package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"fintrack/internal/core"
	applog "fintrack/internal/log"

	_ "modernc.org/sqlite"
)

// Notifier receives the tables touched by each committed mutation.
type Notifier interface {
	Notify(tables ...string) int
}

// SQLiteRepository is the embedded store. Writes are serialized through
// writeMu and every commit is reported to the notifier before the write
// lock is released.
type SQLiteRepository struct {
	db       *sql.DB
	notifier Notifier
	writeMu  sync.Mutex
	closed   atomic.Bool
}

// dsn enables WAL so readers see the last committed snapshot while a write
// is in progress, and takes the write lock at BEGIN.
func dsn(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string, notifier Notifier) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %w", core.ErrStoreUnavailable, err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %w", core.ErrStoreUnavailable, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", core.ErrStoreUnavailable, err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}

	return NewWithDB(db, notifier), nil
}

// NewWithDB wraps an already opened, migrated database.
func NewWithDB(db *sql.DB, notifier Notifier) *SQLiteRepository {
	return &SQLiteRepository{
		db:       db,
		notifier: notifier,
	}
}

// DB exposes the pool for read queries.
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

// Ping reports whether the store is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if r.closed.Load() {
		return core.ErrStoreUnavailable
	}
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Wait for an in-flight write to finish its commit and notification
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// mutation runs fn inside a write transaction. On success the transaction is
// committed and table is reported to the notifier while the write lock is
// still held; on any failure it is rolled back and nothing is reported.
func (r *SQLiteRepository) mutation(ctx context.Context, table, op string, fn func(*sql.Tx) (int64, error)) (int64, error) {
	if r.closed.Load() {
		return 0, fmt.Errorf("%s %s: %w", op, table, core.ErrStoreUnavailable)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, writeError(op, table, "begin", err)
	}

	id, err := fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "Rollback failed",
				applog.NewFields().WithMutation(table, op, 0).WithError(rbErr).ToSlice()...)
		}
		if errors.Is(err, core.ErrNotFound) {
			return 0, fmt.Errorf("%s %s: %w", op, table, err)
		}
		return 0, writeError(op, table, "execute", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, writeError(op, table, "commit", err)
	}

	if r.notifier != nil {
		r.notifier.Notify(table)
	}

	slog.DebugContext(ctx, "Mutation committed", applog.NewFields().WithMutation(table, op, id).ToSlice()...)
	return id, nil
}

func writeError(op, table, stage string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("%s %s: %w: %w", op, table, core.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s %s: %w: %s: %w", op, table, core.ErrWriteFailed, stage, err)
}

func isUnavailable(err error) bool {
	return errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed")
}

// execAffecting runs stmt and turns zero affected rows into core.ErrNotFound.
func execAffecting(ctx context.Context, tx *sql.Tx, id int64, stmt string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("id %d: %w", id, core.ErrNotFound)
	}
	return id, nil
}

// nullableID binds zero as NULL so the store assigns the identity.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableText(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
