package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type OrderRepository interface {
	Create(ctx context.Context, order model.Order) (int64, error)
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	//行ロック付き取得（状態遷移の直前に使う）
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	FindByExternalOrderIDForUpdate(ctx context.Context, externalOrderID string) (model.Order, error)
	FindByExternalPaymentID(ctx context.Context, externalPaymentID string) (model.Order, error)
	ListByAccountID(ctx context.Context, accountID int64, page int, limit int) ([]model.Order, int64, error)

	//プロセッサ側注文IDの保存（内部注文1件につき一度だけ）
	SetExternalOrder(ctx context.Context, orderID int64, externalOrderID string) error

	//PENDINGからの前方遷移。対象がPENDINGでなければ書き込まない。
	MarkConfirmed(ctx context.Context, orderID int64, externalPaymentID string, paidAt time.Time) error
	MarkFailed(ctx context.Context, orderID int64) error

	//期限切れ掃除の対象
	ListStalePendingIDs(ctx context.Context, olderThan time.Time, limit int) ([]int64, error)
}

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
