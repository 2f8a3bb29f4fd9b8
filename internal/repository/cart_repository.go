package repository

import (
	"context"

	"ecorder/internal/domain/model"
)

type CartRepository interface {
	//無ければ作る（user_idの一意制約で1つに保つ）
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)

	//行ロック。削除済みならErrNotFound
	LockByID(ctx context.Context, cartID int64) (model.Cart, error)

	//明細ごと削除
	Delete(ctx context.Context, cartID int64) error
}
