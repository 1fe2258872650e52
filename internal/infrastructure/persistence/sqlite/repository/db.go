// Package repository implements the persistence ports over gorm + SQLite.
// Every method resolves its database handle through dbFromContext so that
// calls inside a unit-of-work transaction share that transaction.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"faultline/internal/ports"
)

func dbFromContext(ctx context.Context, fallback *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return fallback.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}
