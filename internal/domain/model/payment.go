package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCOD          PaymentMethod = "COD"
)

// 入金記録。記録した時点で注文は PENDING → PAID。
type Payment struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID       int64           `gorm:"not null;index" json:"order_id"`
	Method        PaymentMethod   `gorm:"type:varchar(30);not null" json:"payment_method"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	TransactionID string          `gorm:"type:varchar(100);uniqueIndex" json:"transaction_id"`
	PaidAt        time.Time       `gorm:"not null" json:"payment_date"`
	CreatedAt     time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

type ShipmentStatus string

const (
	ShipmentStatusShipped   ShipmentStatus = "SHIPPED"
	ShipmentStatusDelivered ShipmentStatus = "DELIVERED"
)

// 出荷記録。記録した時点で注文は PAID → SHIPPED。
type Shipment struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID        int64          `gorm:"not null;index" json:"order_id"`
	Carrier        string         `gorm:"type:varchar(100);not null" json:"carrier"`
	TrackingNumber string         `gorm:"type:varchar(100);not null" json:"tracking_number"`
	Status         ShipmentStatus `gorm:"type:varchar(20);not null" json:"status"`
	ShippedAt      time.Time      `gorm:"not null" json:"shipment_date"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}
