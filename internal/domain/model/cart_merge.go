package model

import "time"

// ゲストカートのマージ記録。
// (account_id, snapshot_hash) のユニーク制約により、同じスナップショットの
// マージを再実行しても数量が二重加算されない。
type CartMerge struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID    int64     `gorm:"not null;uniqueIndex:uq_account_snapshot" json:"account_id"`
	SnapshotHash string    `gorm:"type:varchar(64);not null;uniqueIndex:uq_account_snapshot" json:"snapshot_hash"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
