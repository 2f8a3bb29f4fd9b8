package model

import "time"

type AuditAction string

const (
	AuditActionUpdateStock        AuditAction = "UPDATE_STOCK"
	AuditActionUpdateOrderStatus  AuditAction = "UPDATE_ORDER_STATUS"
	AuditActionUpdateReturnStatus AuditAction = "UPDATE_RETURN_STATUS"
	AuditActionRecordPayment      AuditAction = "RECORD_PAYMENT"
	AuditActionRecordShipment     AuditAction = "RECORD_SHIPMENT"
	AuditActionGrantDiscount      AuditAction = "GRANT_DISCOUNT"
)

type AuditResourceType string

const (
	AuditResourceProduct AuditResourceType = "product"
	AuditResourceOrder   AuditResourceType = "order"
	AuditResourceReturn  AuditResourceType = "return"
	AuditResourceUser    AuditResourceType = "user"
)

// 管理者操作の記録。変更と同じトランザクションで書く。
// Before/Afterは変更のあった項目だけのJSON。
type AuditLog struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorUserID  int64             `gorm:"not null;index" json:"actor_user_id"`
	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index:idx_audit_resource" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index:idx_audit_resource" json:"resource_id"`
	BeforeJSON   string            `gorm:"type:text" json:"before_json"`
	AfterJSON    string            `gorm:"type:text" json:"after_json"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
}
