package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "percentage"
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
)

// 割引。ValidFrom/ValidToがnilなら期間の制限なし。
type Discount struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	Description string          `gorm:"type:text" json:"description"`
	Value       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"value"`
	Type        DiscountType    `gorm:"type:varchar(20);not null" json:"type"`
	ValidFrom   *time.Time      `json:"valid_from,omitempty"`
	ValidTo     *time.Time      `json:"valid_to,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

// 期間内か
func (d Discount) ActiveAt(t time.Time) bool {
	if d.ValidFrom != nil && t.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidTo != nil && t.After(*d.ValidTo) {
		return false
	}
	return true
}

// ユーザーへの割引付与
type UserDiscount struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"not null;uniqueIndex:idx_user_discount" json:"user_id"`
	DiscountID int64     `gorm:"not null;uniqueIndex:idx_user_discount" json:"discount_id"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
