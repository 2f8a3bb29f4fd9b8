package model

import "time"

type WarehouseStatus string

const (
	WarehouseStatusActive   WarehouseStatus = "ACTIVE"
	WarehouseStatusInactive WarehouseStatus = "INACTIVE"
)

type Warehouse struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Location  string          `gorm:"type:varchar(255)" json:"location"`
	Status    WarehouseStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

type InventoryStatus string

const (
	InventoryStatusInStock    InventoryStatus = "IN_STOCK"
	InventoryStatusLowStock   InventoryStatus = "LOW_STOCK"
	InventoryStatusOutOfStock InventoryStatus = "OUT_OF_STOCK"
)

// 倉庫ごとの在庫。quantityは負にならない。
type InventoryRecord struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64           `gorm:"not null;uniqueIndex:idx_inventory_product_warehouse" json:"product_id"`
	WarehouseID int64           `gorm:"not null;uniqueIndex:idx_inventory_product_warehouse" json:"warehouse_id"`
	Quantity    int64           `gorm:"not null;check:quantity >= 0" json:"quantity"`
	MinQuantity int64           `gorm:"not null;default:0" json:"min_quantity"`
	MaxQuantity int64           `gorm:"not null;default:0" json:"max_quantity"`
	Status      InventoryStatus `gorm:"type:varchar(20);not null" json:"status"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 数量から在庫ステータスを決める
func StatusFor(quantity int64, minQuantity int64) InventoryStatus {
	switch {
	case quantity <= 0:
		return InventoryStatusOutOfStock
	case quantity <= minQuantity:
		return InventoryStatusLowStock
	default:
		return InventoryStatusInStock
	}
}

type AdjustmentReason string

const (
	AdjustmentOrderPlaced    AdjustmentReason = "ORDER_PLACED"
	AdjustmentOrderCanceled  AdjustmentReason = "ORDER_CANCELED"
	AdjustmentReturnApproved AdjustmentReason = "RETURN_APPROVED"
	AdjustmentAdminSet       AdjustmentReason = "ADMIN_SET"
)

// 在庫変動の履歴
type InventoryAdjustment struct {
	ID          int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64            `gorm:"not null;index" json:"product_id"`
	WarehouseID int64            `gorm:"not null;index" json:"warehouse_id"`
	ActorUserID int64            `gorm:"not null;index" json:"actor_user_id"`
	Delta       int64            `gorm:"not null" json:"delta"`
	Reason      AdjustmentReason `gorm:"type:varchar(30);not null" json:"reason"`
	Note        string           `gorm:"type:varchar(255)" json:"note"`
	OrderID     *int64           `gorm:"index" json:"order_id,omitempty"`
	ReturnID    *int64           `gorm:"index" json:"return_id,omitempty"`
	CreatedAt   time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
}
