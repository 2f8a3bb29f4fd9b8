package repository

import (
	"context"

	"ecorder/internal/domain/model"
)

type ReturnRepository interface {
	Create(ctx context.Context, r model.ReturnRequest) (int64, error)
	CreateItems(ctx context.Context, items []model.ReturnItem) error

	FindByID(ctx context.Context, id int64) (model.ReturnRequest, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.ReturnRequest, error)
	ListByStatus(ctx context.Context, status model.ReturnStatus, page int, limit int) ([]model.ReturnRequest, int64, error)
	ListItems(ctx context.Context, returnID int64) ([]model.ReturnItem, error)

	//注文明細ごとの返品申請済み数量（却下分は除く）
	SumRequestedByOrderItem(ctx context.Context, orderID int64) (map[int64]int64, error)

	//fromのときだけ更新。更新できなければfalse
	UpdateStatus(ctx context.Context, id int64, from model.ReturnStatus, to model.ReturnStatus) (bool, error)
}
