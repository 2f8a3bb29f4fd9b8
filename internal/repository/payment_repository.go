package repository

import (
	"context"

	"ecorder/internal/domain/model"
)

// 入金記録（注文ごと）
type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) (model.Payment, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.Payment, error)
}

// 出荷記録（注文ごと）
type ShipmentRepository interface {
	Create(ctx context.Context, s model.Shipment) (model.Shipment, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.Shipment, error)
}
