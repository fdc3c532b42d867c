package db

import "context"

// Querier abstracts read queries so repositories can run against MySQL or a fake.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
}

// Rows is an iterator over a result set.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// Row is a single-row result.
type Row interface {
	Scan(dest ...interface{}) error
}
