package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReturnStatus string

const (
	ReturnStatusPending  ReturnStatus = "PENDING"
	ReturnStatusApproved ReturnStatus = "APPROVED"
	ReturnStatusRejected ReturnStatus = "REJECTED"
	ReturnStatusRefunded ReturnStatus = "REFUNDED"
)

// 返品申請。注文のステータスとは独立して進む。
type ReturnRequest struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID        int64           `gorm:"not null;index" json:"order_id"`
	UserID         int64           `gorm:"not null;index" json:"user_id"`
	RMANumber      string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"rma_number"`
	Reason         string          `gorm:"type:text;not null" json:"reason"`
	Status         ReturnStatus    `gorm:"type:varchar(20);not null;index" json:"status"`
	RefundAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"refund_amount"`
	TrackingNumber string          `gorm:"type:varchar(100)" json:"tracking_number"`
	CreatedAt      time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

type ReturnItem struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ReturnRequestID int64           `gorm:"not null;index" json:"return_request_id"`
	OrderItemID     int64           `gorm:"not null;index" json:"order_item_id"`
	Quantity        int64           `gorm:"not null" json:"quantity"`
	PriceAdjustment decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price_adjustment"`
	Description     string          `gorm:"type:text" json:"description"`
}
