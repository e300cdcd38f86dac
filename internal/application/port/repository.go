package port

import (
	"context"
)

// KeyValueStore is the durable local store behind the application state.
// A missing key is reported by found=false, never by an error.
type KeyValueStore interface {
	Load(ctx context.Context, key string) (value string, found bool, err error)
	Save(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// ClearAll removes every entry as one unit
	ClearAll(ctx context.Context) error
	// Keys lists stored keys sharing the prefix
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
