package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 合成IDの予約プレフィックス。本物のプロセッサはこれらのIDを発行しない。
const (
	SyntheticOrderPrefix   = "synth_order_"
	SyntheticPaymentPrefix = "synth_pay_"
)

// 資格情報なしのデプロイ用。注文をローカルで捏造し、署名検証は
// 合成IDに限ってバイパスする。configが本番環境での使用を拒否する。
type SyntheticGateway struct {
	log *zap.Logger
}

func NewSynthetic(log *zap.Logger) *SyntheticGateway {
	return &SyntheticGateway{log: log}
}

func (g *SyntheticGateway) CreateRemoteOrder(ctx context.Context, in CreateOrderInput) (RemoteOrder, error) {
	id := SyntheticOrderPrefix + uuid.NewString()
	g.log.Info("synthetic remote order created",
		zap.String("external_order_id", id),
		zap.String("order_number", in.OrderNumber))
	return RemoteOrder{ID: id, AmountMinorUnits: in.AmountMinorUnits, Currency: in.Currency}, nil
}

// 支払い詳細も捏造する。合成ID以外は存在しない扱い。
func (g *SyntheticGateway) FetchPayment(ctx context.Context, externalPaymentID string) (RemotePayment, error) {
	if !strings.HasPrefix(externalPaymentID, SyntheticPaymentPrefix) {
		return RemotePayment{}, fmt.Errorf("unknown payment %s", externalPaymentID)
	}
	return RemotePayment{
		ID:       externalPaymentID,
		Status:   "captured",
		Method:   "synthetic",
		Currency: "INR",
	}, nil
}

// 合成IDだけ通す。本物のプロセッサIDがここへ来たら必ず拒否
// （資格情報の欠落が検証バイパスに化けることはない）。
func (g *SyntheticGateway) VerifySignature(externalOrderID string, externalPaymentID string, signature string) bool {
	return strings.HasPrefix(externalOrderID, SyntheticOrderPrefix)
}

func (g *SyntheticGateway) PublicKeyID() string {
	return "synthetic"
}
