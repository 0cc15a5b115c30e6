package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// マージ記録。同じ(account, snapshot)の再実行を検出する。
type CartMergeRepository interface {
	Exists(ctx context.Context, accountID int64, snapshotHash string) (bool, error)
	Create(ctx context.Context, merge model.CartMerge) error
}
