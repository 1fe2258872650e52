package uow

import (
	"context"

	"gorm.io/gorm"

	"faultline/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm. Repositories pick the
// transaction back out of the context, so one WithTx call spans every
// repository touched inside fn.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}
