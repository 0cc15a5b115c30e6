package model

import "time"

// カートの明細
// (cart_id, product_id) のユニーク制約が重複行を防ぐ。
// 数量は常に1以上。0以下になる操作は行の削除として扱う。
type CartItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64     `gorm:"not null;uniqueIndex:uq_cart_product" json:"cart_id"`
	ProductID int64     `gorm:"not null;uniqueIndex:uq_cart_product" json:"product_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// ゲストカートの1行。デバイスローカル相当の一時データ。
type GuestCartItem struct {
	ProductID int64     `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}
