package repository

import (
	"context"

	"ecorder/internal/domain/model"
)

type CartItemRepository interface {
	//id昇順
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)

	//同一商品は数量加算。新規作成ならinserted=true
	AddQuantity(ctx context.Context, cartID int64, productID int64, qty int64) (item model.CartItem, inserted bool, err error)

	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error)
}
