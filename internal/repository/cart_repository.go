package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type CartRepository interface {
	GetOrCreateActiveByAccountID(ctx context.Context, accountID int64) (model.Cart, error)
	FindActiveByAccountID(ctx context.Context, accountID int64) (model.Cart, error)
	UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error
	Clear(ctx context.Context, cartID int64) error
}
