package repository

import (
	"context"

	"ecorder/internal/domain/model"
)

// 付与された割引（付与IDつき）
type GrantedDiscount struct {
	GrantID  int64
	Discount model.Discount
}

type DiscountRepository interface {
	Create(ctx context.Context, d model.Discount) (model.Discount, error)
	FindByID(ctx context.Context, id int64) (model.Discount, error)

	//同じ組み合わせはErrConflict
	Grant(ctx context.Context, userID int64, discountID int64) (model.UserDiscount, error)

	//付与ID昇順
	ListGrantedForUser(ctx context.Context, userID int64) ([]GrantedDiscount, error)
}
