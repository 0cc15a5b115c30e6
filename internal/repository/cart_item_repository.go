package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)

	// 加算upsert。1文のアトミックな書き込みで、並行する加算が両方反映される。
	AddQuantity(ctx context.Context, cartID int64, productID int64, delta int64) error

	// 絶対値の設定。1文の条件付きUPDATEで行う（delete+insertは禁止）。
	// qtyが1未満の呼び出しはエラーではなく削除として扱う側の責務。
	SetQuantity(ctx context.Context, cartID int64, productID int64, qty int64) error

	// 冪等な削除（行が無くてもエラーにしない）
	DeleteByProduct(ctx context.Context, cartID int64, productID int64) error
}
