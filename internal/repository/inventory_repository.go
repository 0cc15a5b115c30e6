package repository

import "context"

type InventoryRepository interface {
	// 在庫が足りるときだけ減算（stockは負にならない）
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル・期限切れ）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error
}
