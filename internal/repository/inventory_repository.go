package repository

import (
	"context"

	"ecorder/internal/domain/model"
)

// 倉庫ごとの在庫と変動履歴
type InventoryRepository interface {
	//稼働中倉庫の在庫行を行ロックして返す。
	//ロックは (product_id, warehouse_id) 昇順で取る。
	LockByProductIDs(ctx context.Context, productIDs []int64) ([]model.InventoryRecord, error)

	//商品の引当先（稼働中倉庫でwarehouse_id最小）を行ロックして返す
	LockPrimaryByProductID(ctx context.Context, productID int64) (model.InventoryRecord, error)

	FindByProductAndWarehouse(ctx context.Context, productID int64, warehouseID int64) (model.InventoryRecord, error)
	ListByProductID(ctx context.Context, productID int64) ([]model.InventoryRecord, error)
	Create(ctx context.Context, rec model.InventoryRecord) (model.InventoryRecord, error)

	SetQuantity(ctx context.Context, recordID int64, quantity int64) error

	//在庫が足りるときだけ減らす
	DecreaseIfEnough(ctx context.Context, recordID int64, qty int64) (bool, error)
	Increase(ctx context.Context, recordID int64, qty int64) error

	CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error
	//注文に紐づく変動履歴（id昇順）
	ListAdjustmentsByOrderID(ctx context.Context, orderID int64) ([]model.InventoryAdjustment, error)
}

type WarehouseRepository interface {
	Create(ctx context.Context, w model.Warehouse) (model.Warehouse, error)
	FindByID(ctx context.Context, id int64) (model.Warehouse, error)
	List(ctx context.Context) ([]model.Warehouse, error)
}
