package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// 前方遷移のみ許可。CONFIRMED / FAILED は終端。
func CanTransition(from OrderStatus, to OrderStatus) bool {
	switch from {
	case OrderStatusPending:
		return to == OrderStatusConfirmed || to == OrderStatusFailed
	default:
		return false
	}
}

// 注文。total_amount は作成時のスナップショット価格から一度だけ計算し、
// 以後カタログから再計算しない。
type Order struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber string      `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_number"`
	AccountID   int64       `gorm:"not null;index" json:"account_id"`
	Status      OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Subtotal    int64       `gorm:"not null" json:"subtotal"`
	TotalAmount int64       `gorm:"not null" json:"total_amount"`
	Currency    string      `gorm:"type:varchar(8);not null" json:"currency"`

	//決済プロセッサ側の注文/支払いID
	ExternalOrderID   string `gorm:"type:varchar(64);index" json:"external_order_id"`
	ExternalPaymentID string `gorm:"type:varchar(64)" json:"external_payment_id"`

	BillingAddress  string `gorm:"type:text;not null" json:"billing_address"`
	ShippingAddress string `gorm:"type:text" json:"shipping_address"`
	ContactEmail    string `gorm:"type:varchar(255);not null" json:"contact_email"`
	ContactPhone    string `gorm:"type:varchar(30);not null" json:"contact_phone"`

	CreatedAt time.Time  `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
	PaidAt    *time.Time `json:"paid_at"`
}
