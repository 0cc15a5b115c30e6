package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/gateway"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// 検証失敗時のメッセージは固定。署名の内部事情は漏らさない。
const verificationFailedMessage = "payment could not be confirmed"

// PaymentUsecase は検証済みコールバックによる注文状態の遷移。
// PENDING→CONFIRMED / PENDING→FAILED のみ。終端状態は不変。
// 在庫は注文作成時に減算済みなので、ここでは一切触らない。
type PaymentUsecase struct {
	tx     repo.TransactionManager
	orders repo.OrderRepository
	gw     gateway.Gateway
	log    *zap.Logger
}

func NewPaymentUsecase(tx repo.TransactionManager, orders repo.OrderRepository, gw gateway.Gateway, log *zap.Logger) *PaymentUsecase {
	return &PaymentUsecase{tx: tx, orders: orders, gw: gw, log: log}
}

type ConfirmPaymentInput struct {
	ExternalOrderID   string
	ExternalPaymentID string
	Signature         string
}

type ConfirmPaymentOutput struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// ConfirmPayment は署名検証とPENDING→CONFIRMEDの遷移。
// 同じ正規コールバックの再送は同じ結果を返すだけで、二度目の書き込みはない。
func (u *PaymentUsecase) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (ConfirmPaymentOutput, error) {
	if strings.TrimSpace(in.ExternalOrderID) == "" {
		return ConfirmPaymentOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "external_order_id is required")
	}
	if strings.TrimSpace(in.ExternalPaymentID) == "" {
		return ConfirmPaymentOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "external_payment_id is required")
	}

	var out ConfirmPaymentOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByExternalOrderIDForUpdate(ctx, in.ExternalOrderID)
		if err == repo.ErrNotFound {
			//存在の有無も漏らさない
			return NewHTTPError(http.StatusBadRequest, CodeVerificationFailed, verificationFailedMessage)
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}

		switch o.Status {
		case model.OrderStatusConfirmed:
			//同じコールバックの再送なら冪等に成功
			if o.ExternalPaymentID == in.ExternalPaymentID {
				out = ConfirmPaymentOutput{OrderID: o.ID, Status: string(o.Status)}
				return nil
			}
			return NewHTTPError(http.StatusBadRequest, CodeVerificationFailed, verificationFailedMessage)

		case model.OrderStatusFailed:
			//FAILEDは終端。支払いの再試行は新しい注文で行う
			return NewHTTPError(http.StatusBadRequest, CodeVerificationFailed, verificationFailedMessage)
		}

		if !u.gw.VerifySignature(in.ExternalOrderID, in.ExternalPaymentID, in.Signature) {
			//注文はPENDINGのまま：偽署名で支払い可能な注文を潰させない
			u.log.Warn("payment signature verification failed",
				zap.Int64("order_id", o.ID),
				zap.String("external_order_id", in.ExternalOrderID))
			return NewHTTPError(http.StatusBadRequest, CodeVerificationFailed, verificationFailedMessage)
		}

		if !model.CanTransition(o.Status, model.OrderStatusConfirmed) {
			return NewHTTPError(http.StatusConflict, CodeConflict, "order is already closed")
		}

		if err := r.Orders().MarkConfirmed(ctx, o.ID, in.ExternalPaymentID, time.Now()); err != nil {
			if err == repo.ErrNotFound {
				//並行する確定とのレース。結果は同じなので成功扱い
				out = ConfirmPaymentOutput{OrderID: o.ID, Status: string(model.OrderStatusConfirmed)}
				return nil
			}
			return NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}

		u.log.Info("order confirmed",
			zap.Int64("order_id", o.ID),
			zap.String("external_payment_id", in.ExternalPaymentID))

		out = ConfirmPaymentOutput{OrderID: o.ID, Status: string(model.OrderStatusConfirmed)}
		return nil
	})

	if err != nil {
		return ConfirmPaymentOutput{}, err
	}
	return out, nil
}

type PaymentDetailOutput struct {
	OrderID           int64  `json:"order_id"`
	ExternalOrderID   string `json:"external_order_id"`
	ExternalPaymentID string `json:"external_payment_id"`
	Status            string `json:"status"`
	Method            string `json:"method"`
	AmountMinorUnits  int64  `json:"amount_minor_units"`
	Currency          string `json:"currency"`
}

// GetPaymentDetail はプロセッサ側の支払い詳細の読み取り。
// 支払いが自分の注文に紐づいているときだけ見える。書き込みは一切ない。
func (u *PaymentUsecase) GetPaymentDetail(ctx context.Context, accountID int64, externalPaymentID string) (PaymentDetailOutput, error) {
	if accountID <= 0 {
		return PaymentDetailOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(externalPaymentID) == "" {
		return PaymentDetailOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "payment id is required")
	}

	o, err := u.orders.FindByExternalPaymentID(ctx, externalPaymentID)
	if err == repo.ErrNotFound {
		return PaymentDetailOutput{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}
	if err != nil {
		return PaymentDetailOutput{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}
	if o.AccountID != accountID {
		//他人の支払いは「存在しない扱い」
		return PaymentDetailOutput{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}

	p, err := u.gw.FetchPayment(ctx, externalPaymentID)
	if err != nil {
		u.log.Error("payment fetch failed",
			zap.Int64("order_id", o.ID), zap.String("external_payment_id", externalPaymentID), zap.Error(err))
		return PaymentDetailOutput{}, NewHTTPError(http.StatusBadGateway, CodeGatewayUnavailable, "payment gateway unavailable")
	}

	return PaymentDetailOutput{
		OrderID:           o.ID,
		ExternalOrderID:   o.ExternalOrderID,
		ExternalPaymentID: p.ID,
		Status:            p.Status,
		Method:            p.Method,
		AmountMinorUnits:  p.AmountMinorUnits,
		Currency:          p.Currency,
	}, nil
}
