package usecase

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/gateway"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// =====================
// Mocks（Payment向け：衝突回避）
// =====================

type PayTxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *PayTxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.Called(ctx)
	return fn(m.Repos)
}

type PayOrderRepoMock struct{ mock.Mock }

func (m *PayOrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	panic("not used in PaymentUsecase tests")
}

func (m *PayOrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	panic("not used in PaymentUsecase tests")
}

func (m *PayOrderRepoMock) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	panic("not used in PaymentUsecase tests")
}

func (m *PayOrderRepoMock) FindByExternalOrderIDForUpdate(ctx context.Context, externalOrderID string) (model.Order, error) {
	args := m.Called(ctx, externalOrderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *PayOrderRepoMock) FindByExternalPaymentID(ctx context.Context, externalPaymentID string) (model.Order, error) {
	args := m.Called(ctx, externalPaymentID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *PayOrderRepoMock) ListByAccountID(ctx context.Context, accountID int64, page int, limit int) ([]model.Order, int64, error) {
	panic("not used in PaymentUsecase tests")
}

func (m *PayOrderRepoMock) SetExternalOrder(ctx context.Context, orderID int64, externalOrderID string) error {
	panic("not used in PaymentUsecase tests")
}

func (m *PayOrderRepoMock) MarkConfirmed(ctx context.Context, orderID int64, externalPaymentID string, paidAt time.Time) error {
	args := m.Called(ctx, orderID, externalPaymentID, paidAt)
	return args.Error(0)
}

func (m *PayOrderRepoMock) MarkFailed(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *PayOrderRepoMock) ListStalePendingIDs(ctx context.Context, olderThan time.Time, limit int) ([]int64, error) {
	panic("not used in PaymentUsecase tests")
}

type PayGatewayMock struct{ mock.Mock }

func (m *PayGatewayMock) CreateRemoteOrder(ctx context.Context, in gateway.CreateOrderInput) (gateway.RemoteOrder, error) {
	panic("not used in PaymentUsecase tests")
}

func (m *PayGatewayMock) FetchPayment(ctx context.Context, externalPaymentID string) (gateway.RemotePayment, error) {
	args := m.Called(ctx, externalPaymentID)
	p, _ := args.Get(0).(gateway.RemotePayment)
	return p, args.Error(1)
}

func (m *PayGatewayMock) VerifySignature(externalOrderID string, externalPaymentID string, signature string) bool {
	args := m.Called(externalOrderID, externalPaymentID, signature)
	return args.Bool(0)
}

func (m *PayGatewayMock) PublicKeyID() string {
	return "rzp_test_key"
}

func newPaymentFixture(orders *PayOrderRepoMock, gw *PayGatewayMock) *PaymentUsecase {
	tx := new(PayTxManagerMock)
	tx.Repos = &OrderTxReposMock{orders: orders}
	tx.On("WithinTx", mock.Anything).Return(nil)
	return NewPaymentUsecase(tx, orders, gw, zap.NewNop())
}

// =====================
// ConfirmPayment
// =====================

func TestConfirmPayment_ValidSignatureConfirms(t *testing.T) {
	ctx := context.Background()

	orders := new(PayOrderRepoMock)
	gw := new(PayGatewayMock)

	orders.On("FindByExternalOrderIDForUpdate", ctx, "order_ext_1").Return(model.Order{
		ID: 100, Status: model.OrderStatusPending, ExternalOrderID: "order_ext_1",
	}, nil)
	gw.On("VerifySignature", "order_ext_1", "pay_1", "sig_ok").Return(true)
	orders.On("MarkConfirmed", ctx, int64(100), "pay_1", mock.AnythingOfType("time.Time")).Return(nil)

	uc := newPaymentFixture(orders, gw)

	out, err := uc.ConfirmPayment(ctx, ConfirmPaymentInput{
		ExternalOrderID:   "order_ext_1",
		ExternalPaymentID: "pay_1",
		Signature:         "sig_ok",
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(100), out.OrderID)
	assert.Equal(t, string(model.OrderStatusConfirmed), out.Status)
	orders.AssertExpectations(t)
}

func TestConfirmPayment_TamperedSignatureLeavesOrderPending(t *testing.T) {
	ctx := context.Background()

	orders := new(PayOrderRepoMock)
	gw := new(PayGatewayMock)

	orders.On("FindByExternalOrderIDForUpdate", ctx, "order_ext_1").Return(model.Order{
		ID: 100, Status: model.OrderStatusPending, ExternalOrderID: "order_ext_1",
	}, nil)
	gw.On("VerifySignature", "order_ext_1", "pay_1", "sig_forged").Return(false)

	uc := newPaymentFixture(orders, gw)

	_, err := uc.ConfirmPayment(ctx, ConfirmPaymentInput{
		ExternalOrderID:   "order_ext_1",
		ExternalPaymentID: "pay_1",
		Signature:         "sig_forged",
	})

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, CodeVerificationFailed, he.Code)

	//偽署名は拒否するだけ。支払い可能な注文を潰させない。
	orders.AssertNotCalled(t, "MarkConfirmed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	orders.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
}

func TestConfirmPayment_ReplayOfSameCallbackIsIdempotent(t *testing.T) {
	ctx := context.Background()

	orders := new(PayOrderRepoMock)
	gw := new(PayGatewayMock)

	orders.On("FindByExternalOrderIDForUpdate", ctx, "order_ext_1").Return(model.Order{
		ID: 100, Status: model.OrderStatusConfirmed,
		ExternalOrderID: "order_ext_1", ExternalPaymentID: "pay_1",
	}, nil)

	uc := newPaymentFixture(orders, gw)

	out, err := uc.ConfirmPayment(ctx, ConfirmPaymentInput{
		ExternalOrderID:   "order_ext_1",
		ExternalPaymentID: "pay_1",
		Signature:         "sig_ok",
	})

	assert.NoError(t, err)
	assert.Equal(t, string(model.OrderStatusConfirmed), out.Status)
	//二度目の書き込みは無い
	orders.AssertNotCalled(t, "MarkConfirmed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPayment_ConfirmedWithDifferentPaymentRejected(t *testing.T) {
	ctx := context.Background()

	orders := new(PayOrderRepoMock)
	gw := new(PayGatewayMock)

	orders.On("FindByExternalOrderIDForUpdate", ctx, "order_ext_1").Return(model.Order{
		ID: 100, Status: model.OrderStatusConfirmed,
		ExternalOrderID: "order_ext_1", ExternalPaymentID: "pay_1",
	}, nil)

	uc := newPaymentFixture(orders, gw)

	_, err := uc.ConfirmPayment(ctx, ConfirmPaymentInput{
		ExternalOrderID:   "order_ext_1",
		ExternalPaymentID: "pay_other",
		Signature:         "sig_ok",
	})

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, CodeVerificationFailed, he.Code)
}

func TestConfirmPayment_FailedOrderIsTerminal(t *testing.T) {
	ctx := context.Background()

	orders := new(PayOrderRepoMock)
	gw := new(PayGatewayMock)

	orders.On("FindByExternalOrderIDForUpdate", ctx, "order_ext_1").Return(model.Order{
		ID: 100, Status: model.OrderStatusFailed, ExternalOrderID: "order_ext_1",
	}, nil)

	uc := newPaymentFixture(orders, gw)

	_, err := uc.ConfirmPayment(ctx, ConfirmPaymentInput{
		ExternalOrderID:   "order_ext_1",
		ExternalPaymentID: "pay_1",
		Signature:         "sig_ok",
	})

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, CodeVerificationFailed, he.Code)
	orders.AssertNotCalled(t, "MarkConfirmed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPayment_UnknownOrderUsesGenericMessage(t *testing.T) {
	ctx := context.Background()

	orders := new(PayOrderRepoMock)
	gw := new(PayGatewayMock)

	orders.On("FindByExternalOrderIDForUpdate", ctx, "order_unknown").Return(model.Order{}, repo.ErrNotFound)

	uc := newPaymentFixture(orders, gw)

	_, err := uc.ConfirmPayment(ctx, ConfirmPaymentInput{
		ExternalOrderID:   "order_unknown",
		ExternalPaymentID: "pay_1",
		Signature:         "sig_ok",
	})

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, CodeVerificationFailed, he.Code)
	//存在の有無が漏れないよう、メッセージは失敗系と同一
	assert.Equal(t, verificationFailedMessage, he.Message)
}

func TestConfirmPayment_MissingIDsRejected(t *testing.T) {
	uc := newPaymentFixture(new(PayOrderRepoMock), new(PayGatewayMock))

	_, err := uc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		ExternalOrderID:   "",
		ExternalPaymentID: "pay_1",
	})

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, CodeValidation, he.Code)
}

// =====================
// GetPaymentDetail
// =====================

func TestGetPaymentDetail_ReturnsOwnPayment(t *testing.T) {
	ctx := context.Background()

	orders := new(PayOrderRepoMock)
	gw := new(PayGatewayMock)

	orders.On("FindByExternalPaymentID", ctx, "pay_1").Return(model.Order{
		ID: 100, AccountID: 1, ExternalOrderID: "order_ext_1", ExternalPaymentID: "pay_1",
	}, nil)
	gw.On("FetchPayment", ctx, "pay_1").Return(gateway.RemotePayment{
		ID: "pay_1", OrderID: "order_ext_1", Status: "captured",
		Method: "upi", AmountMinorUnits: 150000, Currency: "INR",
	}, nil)

	uc := newPaymentFixture(orders, gw)

	out, err := uc.GetPaymentDetail(ctx, 1, "pay_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(100), out.OrderID)
	assert.Equal(t, "order_ext_1", out.ExternalOrderID)
	assert.Equal(t, "captured", out.Status)
	assert.Equal(t, "upi", out.Method)
	assert.Equal(t, int64(150000), out.AmountMinorUnits)
}

func TestGetPaymentDetail_OtherAccountsPaymentIsHidden(t *testing.T) {
	ctx := context.Background()

	orders := new(PayOrderRepoMock)
	gw := new(PayGatewayMock)

	orders.On("FindByExternalPaymentID", ctx, "pay_1").Return(model.Order{
		ID: 100, AccountID: 2, ExternalPaymentID: "pay_1",
	}, nil)

	uc := newPaymentFixture(orders, gw)

	_, err := uc.GetPaymentDetail(ctx, 1, "pay_1")

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, CodeNotFound, he.Code)
	gw.AssertNotCalled(t, "FetchPayment", mock.Anything, mock.Anything)
}

func TestGetPaymentDetail_UnknownPaymentReturnsNotFound(t *testing.T) {
	ctx := context.Background()

	orders := new(PayOrderRepoMock)
	gw := new(PayGatewayMock)

	orders.On("FindByExternalPaymentID", ctx, "pay_missing").Return(model.Order{}, repo.ErrNotFound)

	uc := newPaymentFixture(orders, gw)

	_, err := uc.GetPaymentDetail(ctx, 1, "pay_missing")

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, CodeNotFound, he.Code)
}

func TestGetPaymentDetail_GatewayErrorMapsToBadGateway(t *testing.T) {
	ctx := context.Background()

	orders := new(PayOrderRepoMock)
	gw := new(PayGatewayMock)

	orders.On("FindByExternalPaymentID", ctx, "pay_1").Return(model.Order{
		ID: 100, AccountID: 1, ExternalPaymentID: "pay_1",
	}, nil)
	gw.On("FetchPayment", ctx, "pay_1").Return(gateway.RemotePayment{}, assert.AnError)

	uc := newPaymentFixture(orders, gw)

	_, err := uc.GetPaymentDetail(ctx, 1, "pay_1")

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, CodeGatewayUnavailable, he.Code)
}
