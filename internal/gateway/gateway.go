package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"storefront/internal/config"

	"go.uber.org/zap"
)

// プロセッサ側に作成された注文
type RemoteOrder struct {
	ID               string
	AmountMinorUnits int64
	Currency         string
}

// プロセッサ側の支払い詳細
type RemotePayment struct {
	ID               string
	OrderID          string
	Status           string
	Method           string
	AmountMinorUnits int64
	Currency         string
}

type CreateOrderInput struct {
	//内部注文番号。receiptとして送るので、同じ注文の再試行が
	//プロセッサ側で突き合わせ可能（冪等キー）。
	OrderNumber      string
	AmountMinorUnits int64
	Currency         string
	Notes            map[string]string
}

// 決済プロセッサとのやり取りをすべて隔離する。
type Gateway interface {
	CreateRemoteOrder(ctx context.Context, in CreateOrderInput) (RemoteOrder, error)
	// 支払い詳細の取得（読み取りのみ）
	FetchPayment(ctx context.Context, externalPaymentID string) (RemotePayment, error)
	// コールバック署名の検証。副作用なし、何度呼んでも安全。
	VerifySignature(externalOrderID string, externalPaymentID string, signature string) bool
	// UIに渡す公開キー
	PublicKeyID() string
}

// Newは設定に応じたゲートウェイを返す。
// syntheticは明示設定されたときだけ（configが強制）。起動ログで明確に警告する。
func New(cfg config.Config, log *zap.Logger) Gateway {
	if cfg.GatewayMode == config.GatewayModeSynthetic {
		log.Warn("payment gateway running in SYNTHETIC mode: remote orders are fabricated and signature verification is bypassed for synthetic ids only. Never use this mode in production.")
		return NewSynthetic(log)
	}
	return NewRazorpay(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, log)
}

// HMAC-SHA256(orderID|paymentID) のhexダイジェスト。
func computeSignature(secret string, externalOrderID string, externalPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s", externalOrderID, externalPaymentID)
	return hex.EncodeToString(mac.Sum(nil))
}

// 定数時間比較。タイミングで署名を推測させない。
func signatureEqual(expected string, got string) bool {
	return hmac.Equal([]byte(expected), []byte(got))
}
