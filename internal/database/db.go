// Package database declares the query surface repositories depend on.
// pgx.Rows and pgx.Row satisfy Rows and Row as they are, so the Postgres
// pool needs no adapter types and tests can script results with small
// fakes.
package database

import "context"

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
	Ping(ctx context.Context) error
}

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

type Row interface {
	Scan(dest ...any) error
}
