package worker

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// OrderExpirer は放置されたPENDING注文の掃除。
// TTLを超えた注文をFAILEDへ落とし、予約済み在庫を戻す。
// 注文ごとに1トランザクションなので、途中で止まっても部分適用は残らない。
type OrderExpirer struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository
	ttl      time.Duration
	interval time.Duration
	log      *zap.Logger
}

func NewOrderExpirer(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	ttl time.Duration,
	interval time.Duration,
	log *zap.Logger,
) *OrderExpirer {
	return &OrderExpirer{tx: tx, orders: orders, ttl: ttl, interval: interval, log: log}
}

// Run はctxが閉じるまで定期的に掃除する。
func (w *OrderExpirer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("order expirer started",
		zap.Duration("ttl", w.ttl), zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("order expirer stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *OrderExpirer) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.ttl)

	ids, err := w.orders.ListStalePendingIDs(ctx, cutoff, 100)
	if err != nil {
		w.log.Error("stale order listing failed", zap.Error(err))
		return
	}

	for _, id := range ids {
		if err := w.expireOne(ctx, id, cutoff); err != nil {
			w.log.Error("order expiry failed", zap.Int64("order_id", id), zap.Error(err))
		}
	}
}

func (w *OrderExpirer) expireOne(ctx context.Context, orderID int64, cutoff time.Time) error {
	return w.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err == repo.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		//一覧取得後に確定/失敗した注文はそのまま
		if o.Status != model.OrderStatusPending || !o.CreatedAt.Before(cutoff) {
			return nil
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}

		for _, it := range items {
			if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		if err := r.Orders().MarkFailed(ctx, orderID); err != nil {
			return err
		}

		w.log.Info("pending order expired",
			zap.Int64("order_id", orderID),
			zap.String("order_number", o.OrderNumber))
		return nil
	})
}
