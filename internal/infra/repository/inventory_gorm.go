package repository

import (
	"context"
	"fmt"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 更新後のquantityからstatusを決めるCASE式。%sは更新後の数量式。
const inventoryStatusCase = "CASE WHEN %s <= 0 THEN 'OUT_OF_STOCK' WHEN %s <= min_quantity THEN 'LOW_STOCK' ELSE 'IN_STOCK' END"

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

func (r *InventoryGormRepository) activeWarehouses() *gorm.DB {
	return r.db.Model(&model.Warehouse{}).Select("id").Where("status = ?", model.WarehouseStatusActive)
}

// 稼働中倉庫の在庫行を順番にロック（デッドロック防止）
func (r *InventoryGormRepository) LockByProductIDs(ctx context.Context, productIDs []int64) ([]model.InventoryRecord, error) {
	if len(productIDs) == 0 {
		return []model.InventoryRecord{}, nil
	}

	var recs []model.InventoryRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id IN ? AND warehouse_id IN (?)", productIDs, r.activeWarehouses()).
		Order("product_id asc").
		Order("warehouse_id asc").
		Find(&recs).Error
	if err != nil {
		return []model.InventoryRecord{}, err
	}
	return recs, nil
}

func (r *InventoryGormRepository) LockPrimaryByProductID(ctx context.Context, productID int64) (model.InventoryRecord, error) {
	var rec model.InventoryRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND warehouse_id IN (?)", productID, r.activeWarehouses()).
		Order("warehouse_id asc").
		First(&rec).Error
	if isNotFound(err) {
		return model.InventoryRecord{}, repo.ErrNotFound
	}
	if err != nil {
		return model.InventoryRecord{}, err
	}
	return rec, nil
}

func (r *InventoryGormRepository) FindByProductAndWarehouse(ctx context.Context, productID int64, warehouseID int64) (model.InventoryRecord, error) {
	var rec model.InventoryRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		First(&rec).Error
	if isNotFound(err) {
		return model.InventoryRecord{}, repo.ErrNotFound
	}
	if err != nil {
		return model.InventoryRecord{}, err
	}
	return rec, nil
}

func (r *InventoryGormRepository) ListByProductID(ctx context.Context, productID int64) ([]model.InventoryRecord, error) {
	var recs []model.InventoryRecord
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("warehouse_id asc").
		Find(&recs).Error; err != nil {
		return []model.InventoryRecord{}, err
	}
	return recs, nil
}

func (r *InventoryGormRepository) Create(ctx context.Context, rec model.InventoryRecord) (model.InventoryRecord, error) {
	rec.Status = model.StatusFor(rec.Quantity, rec.MinQuantity)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return model.InventoryRecord{}, repo.ErrConflict
		}
		return model.InventoryRecord{}, err
	}
	return rec, nil
}

// 在庫の現在値を設定
func (r *InventoryGormRepository) SetQuantity(ctx context.Context, recordID int64, quantity int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.InventoryRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"quantity": quantity,
			"status":   gorm.Expr(statusExpr("?"), quantity, quantity),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 在庫が足りるときだけ減らす
func (r *InventoryGormRepository) DecreaseIfEnough(ctx context.Context, recordID int64, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.InventoryRecord{}).
		Where("id = ? AND quantity >= ?", recordID, qty).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity - ?", qty),
			"status":   gorm.Expr(statusExpr("quantity - ?"), qty, qty),
		})

	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

// 在庫戻し（キャンセル・返品）
func (r *InventoryGormRepository) Increase(ctx context.Context, recordID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.InventoryRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity + ?", qty),
			"status":   gorm.Expr(statusExpr("quantity + ?"), qty, qty),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 変動履歴作成
func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return r.db.WithContext(ctx).Create(&adj).Error
}

func (r *InventoryGormRepository) ListAdjustmentsByOrderID(ctx context.Context, orderID int64) ([]model.InventoryAdjustment, error) {
	var adjs []model.InventoryAdjustment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&adjs).Error; err != nil {
		return []model.InventoryAdjustment{}, err
	}
	return adjs, nil
}

func statusExpr(quantityExpr string) string {
	return fmt.Sprintf(inventoryStatusCase, quantityExpr, quantityExpr)
}

type WarehouseGormRepository struct {
	db *gorm.DB
}

func NewWarehouseGormRepository(db *gorm.DB) *WarehouseGormRepository {
	return &WarehouseGormRepository{db: db}
}

func (r *WarehouseGormRepository) Create(ctx context.Context, w model.Warehouse) (model.Warehouse, error) {
	if w.Status == "" {
		w.Status = model.WarehouseStatusActive
	}
	if err := r.db.WithContext(ctx).Create(&w).Error; err != nil {
		return model.Warehouse{}, err
	}
	return w, nil
}

func (r *WarehouseGormRepository) FindByID(ctx context.Context, id int64) (model.Warehouse, error) {
	var w model.Warehouse
	err := r.db.WithContext(ctx).First(&w, id).Error
	if isNotFound(err) {
		return model.Warehouse{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Warehouse{}, err
	}
	return w, nil
}

func (r *WarehouseGormRepository) List(ctx context.Context) ([]model.Warehouse, error) {
	var ws []model.Warehouse
	if err := r.db.WithContext(ctx).Order("id asc").Find(&ws).Error; err != nil {
		return []model.Warehouse{}, err
	}
	return ws, nil
}
