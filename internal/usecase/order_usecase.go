package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/gateway"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 通貨はINR固定。金額はルピー単位で保持し、ゲートウェイへは最小単位（パイサ）で渡す。
const (
	orderCurrency   = "INR"
	minorUnitFactor = 100
)

// OrderUsecase は注文作成と参照。
// 在庫の検証・減算と注文行の挿入は1トランザクション：途中で落ちても
// 「減算だけ」「注文だけ」の状態は残らない。
type OrderUsecase struct {
	tx     repo.TransactionManager
	orders repo.OrderRepository
	gw     gateway.Gateway
	log    *zap.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, orders repo.OrderRepository, gw gateway.Gateway, log *zap.Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, orders: orders, gw: gw, log: log}
}

type PlaceOrderInput struct {
	BillingAddress  string
	ShippingAddress string
	ContactEmail    string
	ContactPhone    string

	// UIが表示していた明細と合計。受け取るが信用しない：
	// 保存される注文は常にサーバーカートとスナップショット価格から決まる。
	ClientLineItems   []ClientLineItem
	ClientTotalAmount int64
}

type ClientLineItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type PlaceOrderOutput struct {
	OrderID          int64  `json:"order_id"`
	OrderNumber      string `json:"order_number"`
	ExternalOrderID  string `json:"external_order_id"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
	GatewayPublicKey string `json:"gateway_public_key"`
}

type OrderItemOutput struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

type OrderOutput struct {
	ID          int64             `json:"id"`
	OrderNumber string            `json:"order_number"`
	AccountID   int64             `json:"account_id"`
	Status      string            `json:"status"`
	TotalAmount int64             `json:"total_amount"`
	Currency    string            `json:"currency"`
	CreatedAt   time.Time         `json:"created_at"`
	PaidAt      *time.Time        `json:"paid_at"`
	Items       []OrderItemOutput `json:"items"`
}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, accountID int64, in PlaceOrderInput) (PlaceOrderOutput, error) {
	if accountID <= 0 {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(in.BillingAddress) == "" {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "billing_address is required")
	}
	if strings.TrimSpace(in.ContactEmail) == "" {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "contact_email is required")
	}
	if strings.TrimSpace(in.ContactPhone) == "" {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "contact_phone is required")
	}

	var (
		orderID     int64
		orderNumber string
		total       int64
	)

	//在庫検証・減算・注文挿入をひとつのトランザクションで
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindActiveByAccountID(ctx, accountID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusBadRequest, CodeEmptyCart, "cart is empty")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}
		if len(cartItems) == 0 {
			return NewHTTPError(http.StatusBadRequest, CodeEmptyCart, "cart is empty")
		}

		//在庫を確定時に再チェックして減らす。1行でも足りなければ全体が失敗
		//（トランザクションごと巻き戻る）。
		orderItems := make([]model.OrderItem, 0, len(cartItems))
		total = 0

		for _, ci := range cartItems {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusBadRequest, CodeValidation, fmt.Sprintf("unknown product %d", ci.ProductID))
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
			}
			if !p.IsActive {
				return NewHTTPError(http.StatusBadRequest, CodeValidation, fmt.Sprintf("product %d is not available", ci.ProductID))
			}

			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, ci.ProductID, ci.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
			}
			if !ok {
				return NewHTTPError(http.StatusConflict, CodeInsufficientStock, fmt.Sprintf("insufficient stock for %s", p.Name))
			}

			//スナップショット。以後カタログ価格が変わっても注文金額は動かない
			lineTotal := p.Price * ci.Quantity
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           ci.ProductID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   p.Price,
				Quantity:            ci.Quantity,
				LineTotal:           lineTotal,
				CreatedAt:           time.Now(),
			})

			total += lineTotal
		}

		if total <= 0 {
			return NewHTTPError(http.StatusBadRequest, CodeInvalidAmount, "order total must be positive")
		}

		now := time.Now()
		orderNumber = newOrderNumber(now)

		orderID, err = r.Orders().Create(ctx, model.Order{
			OrderNumber:     orderNumber,
			AccountID:       accountID,
			Status:          model.OrderStatusPending,
			Subtotal:        total,
			TotalAmount:     total,
			Currency:        orderCurrency,
			BillingAddress:  in.BillingAddress,
			ShippingAddress: in.ShippingAddress,
			ContactEmail:    in.ContactEmail,
			ContactPhone:    in.ContactPhone,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}

		//カートをCHECKED_OUTにして明細をクリア（再注文防止）
		if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusCheckedOut); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}

		return nil
	})
	if err != nil {
		return PlaceOrderOutput{}, err
	}

	//コミット後にリモート注文を開く。失敗しても注文はPENDINGのまま残り、
	//期限切れ掃除が在庫を戻す。receiptに注文番号が入るので再試行は安全。
	remote, err := u.gw.CreateRemoteOrder(ctx, gateway.CreateOrderInput{
		OrderNumber:      orderNumber,
		AmountMinorUnits: total * minorUnitFactor,
		Currency:         orderCurrency,
		Notes: map[string]string{
			"customer_email": in.ContactEmail,
			"customer_phone": in.ContactPhone,
		},
	})
	if err != nil {
		u.log.Error("remote order creation failed",
			zap.Int64("order_id", orderID), zap.Error(err))
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadGateway, CodeGatewayUnavailable, "payment gateway unavailable")
	}

	if err := u.orders.SetExternalOrder(ctx, orderID, remote.ID); err != nil {
		u.log.Error("persisting external order id failed",
			zap.Int64("order_id", orderID), zap.String("external_order_id", remote.ID), zap.Error(err))
		return PlaceOrderOutput{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}

	return PlaceOrderOutput{
		OrderID:          orderID,
		OrderNumber:      orderNumber,
		ExternalOrderID:  remote.ID,
		AmountMinorUnits: total * minorUnitFactor,
		Currency:         orderCurrency,
		GatewayPublicKey: u.gw.PublicKeyID(),
	}, nil
}

// OpenPaymentSession はPENDING注文の支払いセッションを（再）発行する。
// 注文作成後にゲートウェイが落ちて外部注文を開けなかった買い手の再試行経路。
// 既に外部注文があればそれを返すだけ：内部注文1件に外部注文は1件まで。
func (u *OrderUsecase) OpenPaymentSession(ctx context.Context, accountID int64, orderID int64) (PlaceOrderOutput, error) {
	if accountID <= 0 {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}
	if err != nil {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}
	if o.AccountID != accountID {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}
	if o.Status != model.OrderStatusPending {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusConflict, CodeConflict, "order is already closed")
	}

	if o.ExternalOrderID != "" {
		//既存セッションを返すだけ（二重発行しない）
		return paymentSessionOutput(o, o.ExternalOrderID, u.gw.PublicKeyID()), nil
	}

	remote, err := u.gw.CreateRemoteOrder(ctx, gateway.CreateOrderInput{
		OrderNumber:      o.OrderNumber,
		AmountMinorUnits: o.TotalAmount * minorUnitFactor,
		Currency:         o.Currency,
		Notes: map[string]string{
			"customer_email": o.ContactEmail,
			"customer_phone": o.ContactPhone,
		},
	})
	if err != nil {
		u.log.Error("remote order creation failed",
			zap.Int64("order_id", o.ID), zap.Error(err))
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadGateway, CodeGatewayUnavailable, "payment gateway unavailable")
	}

	if err := u.orders.SetExternalOrder(ctx, orderID, remote.ID); err != nil {
		if err == repo.ErrNotFound {
			//並行する発行が先行した。保存済みのIDを読み直して返す。
			cur, ferr := u.orders.FindByID(ctx, orderID)
			if ferr == nil && cur.ExternalOrderID != "" {
				return paymentSessionOutput(cur, cur.ExternalOrderID, u.gw.PublicKeyID()), nil
			}
		}
		u.log.Error("persisting external order id failed",
			zap.Int64("order_id", o.ID), zap.String("external_order_id", remote.ID), zap.Error(err))
		return PlaceOrderOutput{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}

	return paymentSessionOutput(o, remote.ID, u.gw.PublicKeyID()), nil
}

func paymentSessionOutput(o model.Order, externalOrderID string, publicKey string) PlaceOrderOutput {
	return PlaceOrderOutput{
		OrderID:          o.ID,
		OrderNumber:      o.OrderNumber,
		ExternalOrderID:  externalOrderID,
		AmountMinorUnits: o.TotalAmount * minorUnitFactor,
		Currency:         o.Currency,
		GatewayPublicKey: publicKey,
	}
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, accountID int64) ([]OrderOutput, error) {
	if accountID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByAccountID(ctx, accountID, 1, 50)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, accountID int64, orderID int64) (OrderOutput, error) {
	if accountID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}
		if o.AccountID != accountID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// CancelOrder はPENDING注文の明示キャンセル。FAILEDへ落として在庫を戻す。
// 終端状態の注文は変更できない。
func (u *OrderUsecase) CancelOrder(ctx context.Context, accountID int64, orderID int64) (OrderOutput, error) {
	if accountID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}
		if o.AccountID != accountID {
			return NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
		}

		if !model.CanTransition(o.Status, model.OrderStatusFailed) {
			return NewHTTPError(http.StatusConflict, CodeConflict, "order is already closed")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}

		//在庫戻しと状態遷移は同じトランザクション
		for _, it := range items {
			if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
			}
		}

		if err := r.Orders().MarkFailed(ctx, orderID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}

		o.Status = model.OrderStatusFailed
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal,
		})
	}

	return OrderOutput{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		AccountID:   o.AccountID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		CreatedAt:   o.CreatedAt,
		PaidAt:      o.PaidAt,
		Items:       outItems,
	}
}

func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%s", now.Unix(), strings.Split(uuid.NewString(), "-")[0])
}
