package repository

import (
	"context"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"

	"gorm.io/gorm"
)

type ReturnGormRepository struct {
	db *gorm.DB
}

func NewReturnGormRepository(db *gorm.DB) *ReturnGormRepository {
	return &ReturnGormRepository{db: db}
}

func (r *ReturnGormRepository) Create(ctx context.Context, rr model.ReturnRequest) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&rr).Error; err != nil {
		return 0, err
	}
	return rr.ID, nil
}

func (r *ReturnGormRepository) CreateItems(ctx context.Context, items []model.ReturnItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *ReturnGormRepository) FindByID(ctx context.Context, id int64) (model.ReturnRequest, error) {
	var rr model.ReturnRequest
	err := r.db.WithContext(ctx).First(&rr, id).Error
	if isNotFound(err) {
		return model.ReturnRequest{}, repo.ErrNotFound
	}
	if err != nil {
		return model.ReturnRequest{}, err
	}
	return rr, nil
}

func (r *ReturnGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.ReturnRequest, error) {
	var list []model.ReturnRequest
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Find(&list).Error; err != nil {
		return []model.ReturnRequest{}, err
	}
	return list, nil
}

func (r *ReturnGormRepository) ListByStatus(ctx context.Context, status model.ReturnStatus, page int, limit int) ([]model.ReturnRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.ReturnRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.ReturnRequest{}, 0, err
	}

	var list []model.ReturnRequest
	offset := (page - 1) * limit
	if err := q.Order("id desc").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return []model.ReturnRequest{}, 0, err
	}
	return list, total, nil
}

func (r *ReturnGormRepository) ListItems(ctx context.Context, returnID int64) ([]model.ReturnItem, error) {
	var items []model.ReturnItem
	if err := r.db.WithContext(ctx).
		Where("return_request_id = ?", returnID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.ReturnItem{}, err
	}
	return items, nil
}

type requestedQtyRow struct {
	OrderItemID int64
	Total       int64
}

// 却下以外の返品申請の数量を注文明細ごとに合計
func (r *ReturnGormRepository) SumRequestedByOrderItem(ctx context.Context, orderID int64) (map[int64]int64, error) {
	var rows []requestedQtyRow
	err := r.db.WithContext(ctx).
		Table("return_items").
		Select("return_items.order_item_id, COALESCE(SUM(return_items.quantity), 0) AS total").
		Joins("JOIN return_requests ON return_requests.id = return_items.return_request_id").
		Where("return_requests.order_id = ? AND return_requests.status <> ?", orderID, model.ReturnStatusRejected).
		Group("return_items.order_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64]int64, len(rows))
	for _, row := range rows {
		out[row.OrderItemID] = row.Total
	}
	return out, nil
}

func (r *ReturnGormRepository) UpdateStatus(ctx context.Context, id int64, from model.ReturnStatus, to model.ReturnStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ReturnRequest{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
