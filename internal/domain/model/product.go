package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 商品。価格は2桁小数。
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	SKU         string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"sku"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Weight      decimal.Decimal `gorm:"type:numeric(10,3);not null;default:0" json:"weight"`
	Dimensions  string          `gorm:"type:varchar(100)" json:"dimensions"`
	IsActive    bool            `gorm:"not null;default:false" json:"is_active"`
	CategoryID  *int64          `gorm:"index" json:"category_id,omitempty"`

	//カタログ上の割引参照（注文計算では使わない）
	DiscountID *int64 `gorm:"index" json:"discount_id,omitempty"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// 商品カテゴリ（親子あり）
type Category struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	ParentID  *int64    `gorm:"index" json:"parent_id,omitempty"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
