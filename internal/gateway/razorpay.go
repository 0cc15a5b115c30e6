package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Razorpay形式の注文API (/v1/orders) を叩くクライアント。
type RazorpayGateway struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[RemoteOrder]
	log       *zap.Logger
}

func NewRazorpay(baseURL string, keyID string, keySecret string, log *zap.Logger) *RazorpayGateway {
	return &RazorpayGateway{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		http:      &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[RemoteOrder](gobreaker.Settings{
			Name: "payment-gateway",
		}),
		log: log,
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"` // 最小通貨単位
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type listOrdersResponse struct {
	Items []createOrderResponse `json:"items"`
}

type fetchPaymentResponse struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Method   string `json:"method"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// リモート注文の作成。receiptに内部注文番号を入れるので、タイムアウト後も
// プロセッサ側で同じ内部注文を突き合わせられる。タイムアウト時はまずreceiptで
// 既存注文を照会し、初回POSTがサーバー側で成功していた場合に二重注文を作らない。
// 見つからなければ一度だけ再POSTする。
func (g *RazorpayGateway) CreateRemoteOrder(ctx context.Context, in CreateOrderInput) (RemoteOrder, error) {
	order, err := g.breaker.Execute(func() (RemoteOrder, error) {
		o, err := g.postOrder(ctx, in)
		if err == nil || !isTimeout(err) {
			return o, err
		}

		g.log.Warn("gateway order creation timed out, reconciling by receipt",
			zap.String("order_number", in.OrderNumber), zap.Error(err))

		existing, found, lookupErr := g.findOrderByReceipt(ctx, in.OrderNumber)
		if lookupErr == nil && found {
			//初回POSTは届いていた。既存の外部注文を返す。
			return existing, nil
		}
		if lookupErr != nil {
			g.log.Warn("gateway order lookup by receipt failed",
				zap.String("order_number", in.OrderNumber), zap.Error(lookupErr))
		}

		return g.postOrder(ctx, in)
	})
	if err != nil {
		return RemoteOrder{}, fmt.Errorf("create remote order: %w", err)
	}
	return order, nil
}

// receiptによる既存注文の照会
func (g *RazorpayGateway) findOrderByReceipt(ctx context.Context, receipt string) (RemoteOrder, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/v1/orders?receipt="+url.QueryEscape(receipt), nil)
	if err != nil {
		return RemoteOrder{}, false, err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.http.Do(req)
	if err != nil {
		return RemoteOrder{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RemoteOrder{}, false, fmt.Errorf("gateway responded %d", resp.StatusCode)
	}

	var out listOrdersResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RemoteOrder{}, false, err
	}
	if len(out.Items) == 0 || out.Items[0].ID == "" {
		return RemoteOrder{}, false, nil
	}

	first := out.Items[0]
	return RemoteOrder{ID: first.ID, AmountMinorUnits: first.Amount, Currency: first.Currency}, true, nil
}

// 支払い詳細の取得 (GET /v1/payments/:id)
func (g *RazorpayGateway) FetchPayment(ctx context.Context, externalPaymentID string) (RemotePayment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/v1/payments/"+url.PathEscape(externalPaymentID), nil)
	if err != nil {
		return RemotePayment{}, err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.http.Do(req)
	if err != nil {
		return RemotePayment{}, fmt.Errorf("fetch payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RemotePayment{}, fmt.Errorf("gateway responded %d", resp.StatusCode)
	}

	var out fetchPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RemotePayment{}, err
	}
	if out.ID == "" {
		return RemotePayment{}, errors.New("gateway returned empty payment id")
	}

	return RemotePayment{
		ID:               out.ID,
		OrderID:          out.OrderID,
		Status:           out.Status,
		Method:           out.Method,
		AmountMinorUnits: out.Amount,
		Currency:         out.Currency,
	}, nil
}

func (g *RazorpayGateway) postOrder(ctx context.Context, in CreateOrderInput) (RemoteOrder, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   in.AmountMinorUnits,
		Currency: in.Currency,
		Receipt:  in.OrderNumber,
		Notes:    in.Notes,
	})
	if err != nil {
		return RemoteOrder{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return RemoteOrder{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.http.Do(req)
	if err != nil {
		return RemoteOrder{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RemoteOrder{}, fmt.Errorf("gateway responded %d", resp.StatusCode)
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RemoteOrder{}, err
	}
	if out.ID == "" {
		return RemoteOrder{}, errors.New("gateway returned empty order id")
	}

	return RemoteOrder{ID: out.ID, AmountMinorUnits: out.Amount, Currency: out.Currency}, nil
}

// 署名検証。平文比較は使わない。
func (g *RazorpayGateway) VerifySignature(externalOrderID string, externalPaymentID string, signature string) bool {
	if externalOrderID == "" || externalPaymentID == "" || signature == "" {
		return false
	}
	expected := computeSignature(g.keySecret, externalOrderID, externalPaymentID)
	return signatureEqual(expected, signature)
}

func (g *RazorpayGateway) PublicKeyID() string {
	return g.keyID
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
