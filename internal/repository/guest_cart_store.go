package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// デバイス単位のゲストカート。揮発ストアで、壊れたデータや欠落は
// 空カートとして扱う（fail-open）。
type GuestCartStore interface {
	Get(ctx context.Context, deviceID string) []model.GuestCartItem
	Add(ctx context.Context, deviceID string, productID int64, delta int64) error
	SetQuantity(ctx context.Context, deviceID string, productID int64, qty int64) error
	Remove(ctx context.Context, deviceID string, productID int64) error
	Clear(ctx context.Context, deviceID string) error
}
