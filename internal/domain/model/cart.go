package model

import "time"

type CartStatus string

const (
	CartStatusActive    CartStatus = "ACTIVE"
	CartStatusAbandoned CartStatus = "ABANDONED"
	CartStatusConverted CartStatus = "CONVERTED"
	CartStatusExpired   CartStatus = "EXPIRED"
)

// カートの持ち主はuser_idかsession_idのどちらか一方のみ。
// (user_id, ACTIVE) と (session_id, ACTIVE) はそれぞれ1件まで。
type Cart struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *int64     `gorm:"index:idx_carts_user_status" json:"user_id,omitempty"`
	SessionID *string    `gorm:"type:varchar(255);index:idx_carts_session_status" json:"session_id,omitempty"`
	Status    CartStatus `gorm:"type:varchar(20);not null;index:idx_carts_user_status;index:idx_carts_session_status" json:"status"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
	// ゲストカートのみ。ユーザーカートは期限なし（null）。
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
}
