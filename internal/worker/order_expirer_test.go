package worker

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// =====================
// TxManager / TxRepos mocks
// =====================

type ExpTxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *ExpTxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.Called(ctx)
	return fn(m.Repos)
}

type ExpTxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	inventory  repo.InventoryRepository

	carts      repo.CartRepository
	cartItems  repo.CartItemRepository
	products   repo.ProductRepository
	cartMerges repo.CartMergeRepository
}

func (r *ExpTxReposMock) Orders() repo.OrderRepository         { return r.orders }
func (r *ExpTxReposMock) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *ExpTxReposMock) Carts() repo.CartRepository           { return r.carts }
func (r *ExpTxReposMock) CartItems() repo.CartItemRepository   { return r.cartItems }
func (r *ExpTxReposMock) Inventory() repo.InventoryRepository  { return r.inventory }
func (r *ExpTxReposMock) Products() repo.ProductRepository     { return r.products }
func (r *ExpTxReposMock) CartMerges() repo.CartMergeRepository { return r.cartMerges }

// =====================
// Repository mocks（Expirer向け：衝突回避）
// =====================

type ExpOrderRepoMock struct{ mock.Mock }

func (m *ExpOrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	panic("not used in OrderExpirer tests")
}

func (m *ExpOrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	panic("not used in OrderExpirer tests")
}

func (m *ExpOrderRepoMock) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *ExpOrderRepoMock) FindByExternalOrderIDForUpdate(ctx context.Context, externalOrderID string) (model.Order, error) {
	panic("not used in OrderExpirer tests")
}

func (m *ExpOrderRepoMock) FindByExternalPaymentID(ctx context.Context, externalPaymentID string) (model.Order, error) {
	panic("not used in OrderExpirer tests")
}

func (m *ExpOrderRepoMock) ListByAccountID(ctx context.Context, accountID int64, page int, limit int) ([]model.Order, int64, error) {
	panic("not used in OrderExpirer tests")
}

func (m *ExpOrderRepoMock) SetExternalOrder(ctx context.Context, orderID int64, externalOrderID string) error {
	panic("not used in OrderExpirer tests")
}

func (m *ExpOrderRepoMock) MarkConfirmed(ctx context.Context, orderID int64, externalPaymentID string, paidAt time.Time) error {
	panic("not used in OrderExpirer tests")
}

func (m *ExpOrderRepoMock) MarkFailed(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *ExpOrderRepoMock) ListStalePendingIDs(ctx context.Context, olderThan time.Time, limit int) ([]int64, error) {
	args := m.Called(ctx, olderThan, limit)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

type ExpOrderItemRepoMock struct{ mock.Mock }

func (m *ExpOrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	panic("not used in OrderExpirer tests")
}

func (m *ExpOrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type ExpInventoryRepoMock struct{ mock.Mock }

func (m *ExpInventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	panic("not used in OrderExpirer tests")
}

func (m *ExpInventoryRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

// =====================
// sweep
// =====================

func TestSweep_ExpiresStalePendingOrder(t *testing.T) {
	ctx := context.Background()

	orders := new(ExpOrderRepoMock)
	orderItems := new(ExpOrderItemRepoMock)
	inventory := new(ExpInventoryRepoMock)

	tx := new(ExpTxManagerMock)
	tx.Repos = &ExpTxReposMock{orders: orders, orderItems: orderItems, inventory: inventory}
	tx.On("WithinTx", mock.Anything).Return(nil)

	stale := model.Order{
		ID: 100, OrderNumber: "ORD-1", Status: model.OrderStatusPending,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}

	orders.On("ListStalePendingIDs", ctx, mock.AnythingOfType("time.Time"), 100).Return([]int64{100}, nil)
	orders.On("FindByIDForUpdate", ctx, int64(100)).Return(stale, nil)
	orderItems.On("ListByOrderID", ctx, int64(100)).Return([]model.OrderItem{
		{OrderID: 100, ProductID: 5, Quantity: 2},
		{OrderID: 100, ProductID: 7, Quantity: 1},
	}, nil)
	inventory.On("IncreaseStock", ctx, int64(5), int64(2)).Return(nil)
	inventory.On("IncreaseStock", ctx, int64(7), int64(1)).Return(nil)
	orders.On("MarkFailed", ctx, int64(100)).Return(nil)

	w := NewOrderExpirer(tx, orders, 30*time.Minute, time.Minute, zap.NewNop())
	w.sweep(ctx)

	orders.AssertExpectations(t)
	inventory.AssertExpectations(t)
}

func TestSweep_SkipsOrderConfirmedAfterListing(t *testing.T) {
	ctx := context.Background()

	orders := new(ExpOrderRepoMock)
	orderItems := new(ExpOrderItemRepoMock)
	inventory := new(ExpInventoryRepoMock)

	tx := new(ExpTxManagerMock)
	tx.Repos = &ExpTxReposMock{orders: orders, orderItems: orderItems, inventory: inventory}
	tx.On("WithinTx", mock.Anything).Return(nil)

	//一覧の後、ロック取得までの間に支払いが確定したケース
	orders.On("ListStalePendingIDs", ctx, mock.AnythingOfType("time.Time"), 100).Return([]int64{100}, nil)
	orders.On("FindByIDForUpdate", ctx, int64(100)).Return(model.Order{
		ID: 100, Status: model.OrderStatusConfirmed,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}, nil)

	w := NewOrderExpirer(tx, orders, 30*time.Minute, time.Minute, zap.NewNop())
	w.sweep(ctx)

	inventory.AssertNotCalled(t, "IncreaseStock", mock.Anything, mock.Anything, mock.Anything)
	orders.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
}

func TestSweep_SkipsOrderNoLongerStale(t *testing.T) {
	ctx := context.Background()

	orders := new(ExpOrderRepoMock)
	inventory := new(ExpInventoryRepoMock)

	tx := new(ExpTxManagerMock)
	tx.Repos = &ExpTxReposMock{orders: orders, inventory: inventory}
	tx.On("WithinTx", mock.Anything).Return(nil)

	//cutoffより新しいPENDINGには触らない
	orders.On("ListStalePendingIDs", ctx, mock.AnythingOfType("time.Time"), 100).Return([]int64{100}, nil)
	orders.On("FindByIDForUpdate", ctx, int64(100)).Return(model.Order{
		ID: 100, Status: model.OrderStatusPending,
		CreatedAt: time.Now(),
	}, nil)

	w := NewOrderExpirer(tx, orders, 30*time.Minute, time.Minute, zap.NewNop())
	w.sweep(ctx)

	orders.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
	inventory.AssertNotCalled(t, "IncreaseStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_StopsWhenContextCanceled(t *testing.T) {
	orders := new(ExpOrderRepoMock)
	tx := new(ExpTxManagerMock)
	tx.Repos = &ExpTxReposMock{orders: orders}

	w := NewOrderExpirer(tx, orders, 30*time.Minute, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expirer did not stop after context cancel")
	}
}
