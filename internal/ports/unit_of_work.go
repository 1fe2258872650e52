package ports

import "context"

// Tx is an opaque transaction handle. Infrastructure owns the concrete
// type (here, *gorm.DB); usecases only thread it through context.
type Tx interface{}

// UnitOfWork is a callback-style transaction boundary: fn returning an
// error rolls back, returning nil commits.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in ctx for repositories to
// pick up.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction handle on ctx, or nil.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
