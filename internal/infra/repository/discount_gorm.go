package repository

import (
	"context"
	"time"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"

	"gorm.io/gorm"
)

type DiscountGormRepository struct {
	db *gorm.DB
}

func NewDiscountGormRepository(db *gorm.DB) *DiscountGormRepository {
	return &DiscountGormRepository{db: db}
}

func (r *DiscountGormRepository) Create(ctx context.Context, d model.Discount) (model.Discount, error) {
	if err := r.db.WithContext(ctx).Create(&d).Error; err != nil {
		if isUniqueViolation(err) {
			return model.Discount{}, repo.ErrConflict
		}
		return model.Discount{}, err
	}
	return d, nil
}

func (r *DiscountGormRepository) FindByID(ctx context.Context, id int64) (model.Discount, error) {
	var d model.Discount
	err := r.db.WithContext(ctx).First(&d, id).Error
	if isNotFound(err) {
		return model.Discount{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Discount{}, err
	}
	return d, nil
}

func (r *DiscountGormRepository) Grant(ctx context.Context, userID int64, discountID int64) (model.UserDiscount, error) {
	ud := model.UserDiscount{
		UserID:     userID,
		DiscountID: discountID,
		CreatedAt:  time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&ud).Error; err != nil {
		if isUniqueViolation(err) {
			return model.UserDiscount{}, repo.ErrConflict
		}
		return model.UserDiscount{}, err
	}
	return ud, nil
}

type grantedDiscountRow struct {
	GrantID int64 `gorm:"column:grant_id"`
	model.Discount
}

// 付与ID昇順で返す
func (r *DiscountGormRepository) ListGrantedForUser(ctx context.Context, userID int64) ([]repo.GrantedDiscount, error) {
	var rows []grantedDiscountRow
	err := r.db.WithContext(ctx).
		Table("user_discounts").
		Select("user_discounts.id AS grant_id, discounts.*").
		Joins("JOIN discounts ON discounts.id = user_discounts.discount_id").
		Where("user_discounts.user_id = ?", userID).
		Order("user_discounts.id asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]repo.GrantedDiscount, 0, len(rows))
	for _, row := range rows {
		out = append(out, repo.GrantedDiscount{GrantID: row.GrantID, Discount: row.Discount})
	}
	return out, nil
}
