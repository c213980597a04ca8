// Package query holds the fixed catalog of parameterized read queries. Each
// entry is a pure function of its parameters to SQL text, bound arguments,
// the tables it reads and a decoder for its result.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Query is a bound catalog entry producing a T.
type Query[T any] struct {
	Name   string
	SQL    string
	Args   []any
	Tables []string
	decode func(*sql.Rows) (T, error)
}

// Key identifies the query and its arguments, so identical subscriptions can
// share results.
func (q Query[T]) Key() string {
	var b strings.Builder
	b.WriteString(q.Name)
	for _, a := range q.Args {
		fmt.Fprintf(&b, "|%T:%v", a, a)
	}
	return b.String()
}

// Run executes the query and decodes the full result. Errors while decoding
// are wrapped with core.ErrDecodeFailed; a partial result is never returned.
func (q Query[T]) Run(ctx context.Context, db Querier) (T, error) {
	var zero T

	rows, err := db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return zero, fmt.Errorf("run %s: %w", q.Name, classify(err))
	}
	defer rows.Close()

	out, err := q.decode(rows)
	if err != nil {
		return zero, fmt.Errorf("run %s: %w", q.Name, err)
	}
	if err := rows.Err(); err != nil {
		return zero, fmt.Errorf("run %s: %w", q.Name, classify(err))
	}
	return out, nil
}
