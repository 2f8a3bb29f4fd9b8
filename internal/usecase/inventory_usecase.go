package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"

	"go.uber.org/zap"
)

// 倉庫と在庫の管理（管理者）
type InventoryUsecase struct {
	tx            repo.TransactionManager
	warehouseRepo repo.WarehouseRepository
	inventoryRepo repo.InventoryRepository
	clock         Clock
	logger        *zap.Logger
}

func NewInventoryUsecase(
	tx repo.TransactionManager,
	warehouseRepo repo.WarehouseRepository,
	inventoryRepo repo.InventoryRepository,
	clock Clock,
	logger *zap.Logger,
) *InventoryUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryUsecase{
		tx:            tx,
		warehouseRepo: warehouseRepo,
		inventoryRepo: inventoryRepo,
		clock:         clock,
		logger:        logger,
	}
}

type CreateWarehouseInput struct {
	Name     string
	Location string
	Status   string
}

func (u *InventoryUsecase) AdminCreateWarehouse(ctx context.Context, adminUserID int64, in CreateWarehouseInput) (model.Warehouse, error) {
	if adminUserID <= 0 {
		return model.Warehouse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Warehouse{}, validationError("name required")
	}
	status := model.WarehouseStatus(strings.TrimSpace(in.Status))
	switch status {
	case "":
		status = model.WarehouseStatusActive
	case model.WarehouseStatusActive, model.WarehouseStatusInactive:
	default:
		return model.Warehouse{}, validationError("invalid status")
	}

	w, err := u.warehouseRepo.Create(ctx, model.Warehouse{
		Name:     name,
		Location: strings.TrimSpace(in.Location),
		Status:   status,
	})
	if err != nil {
		u.logger.Error("create warehouse failed", zap.Error(err))
		return model.Warehouse{}, internalError()
	}
	return w, nil
}

func (u *InventoryUsecase) AdminListWarehouses(ctx context.Context) ([]model.Warehouse, error) {
	ws, err := u.warehouseRepo.List(ctx)
	if err != nil {
		u.logger.Error("list warehouses failed", zap.Error(err))
		return []model.Warehouse{}, internalError()
	}
	return ws, nil
}

func (u *InventoryUsecase) AdminListStock(ctx context.Context, productID int64) ([]model.InventoryRecord, error) {
	if productID <= 0 {
		return []model.InventoryRecord{}, validationError("invalid product id")
	}
	recs, err := u.inventoryRepo.ListByProductID(ctx, productID)
	if err != nil {
		u.logger.Error("list stock failed", zap.Int64("product_id", productID), zap.Error(err))
		return []model.InventoryRecord{}, internalError()
	}
	return recs, nil
}

type SetStockInput struct {
	ProductID   int64
	WarehouseID int64
	Quantity    int64
	MinQuantity int64
	MaxQuantity int64
	Reason      string
}

// (商品, 倉庫) の在庫を設定する。無ければ作る。
func (u *InventoryUsecase) AdminSetStock(ctx context.Context, adminUserID int64, in SetStockInput) (model.InventoryRecord, error) {
	if adminUserID <= 0 {
		return model.InventoryRecord{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return model.InventoryRecord{}, validationError("invalid product id")
	}
	if in.WarehouseID <= 0 {
		return model.InventoryRecord{}, validationError("invalid warehouse id")
	}
	if in.Quantity < 0 {
		return model.InventoryRecord{}, validationError("quantity must be >= 0")
	}
	if in.MinQuantity < 0 || in.MaxQuantity < 0 {
		return model.InventoryRecord{}, validationError("min/max quantity must be >= 0")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return model.InventoryRecord{}, validationError("reason required")
	}

	_, err := u.warehouseRepo.FindByID(ctx, in.WarehouseID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.InventoryRecord{}, validationError("invalid warehouse_id")
	}
	if err != nil {
		u.logger.Error("find warehouse failed", zap.Error(err))
		return model.InventoryRecord{}, internalError()
	}

	var out model.InventoryRecord

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Products().FindByID(ctx, in.ProductID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return err
		}

		var before int64
		rec, err := r.Inventory().FindByProductAndWarehouse(ctx, in.ProductID, in.WarehouseID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			rec, err = r.Inventory().Create(ctx, model.InventoryRecord{
				ProductID:   in.ProductID,
				WarehouseID: in.WarehouseID,
				Quantity:    in.Quantity,
				MinQuantity: in.MinQuantity,
				MaxQuantity: in.MaxQuantity,
			})
			if errors.Is(err, repo.ErrConflict) {
				return NewHTTPError(http.StatusConflict, "inventory changed concurrently")
			}
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			before = rec.Quantity
			if err := r.Inventory().SetQuantity(ctx, rec.ID, in.Quantity); err != nil {
				return err
			}
			rec.Quantity = in.Quantity
			rec.Status = model.StatusFor(rec.Quantity, rec.MinQuantity)
		}

		now := u.clock.Now()
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   in.ProductID,
			WarehouseID: in.WarehouseID,
			ActorUserID: adminUserID,
			Delta:       in.Quantity - before,
			Reason:      model.AdjustmentAdminSet,
			Note:        reason,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		//監査ログ（在庫更新）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   in.ProductID,
			BeforeJSON:   fmt.Sprintf(`{"warehouse_id":%d,"quantity":%d}`, in.WarehouseID, before),
			AfterJSON:    fmt.Sprintf(`{"warehouse_id":%d,"quantity":%d}`, in.WarehouseID, in.Quantity),
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		out = rec
		return nil
	})
	if err != nil {
		if ae, ok := AsAppError(err); ok {
			return model.InventoryRecord{}, ae
		}
		u.logger.Error("set stock failed", zap.Int64("product_id", in.ProductID), zap.Error(err))
		return model.InventoryRecord{}, internalError()
	}
	return out, nil
}
