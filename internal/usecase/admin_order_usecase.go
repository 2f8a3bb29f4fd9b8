package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	clock  Clock
	logger *zap.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, clock Clock, logger *zap.Logger) *AdminOrderUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminOrderUsecase{tx: tx, clock: clock, logger: logger}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 許可する遷移（同じステータスへの変更は何もしない）
var orderTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending: {model.OrderStatusPaid, model.OrderStatusCanceled},
	model.OrderStatusPaid:    {model.OrderStatusShipped, model.OrderStatusCanceled},
	model.OrderStatusShipped: {model.OrderStatusCompleted},
}

func canTransition(from, to model.OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, int64, error) {
	if f.Page < 1 {
		return []OrderOutput{}, 0, validationError("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, 0, validationError("invalid limit")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return []OrderOutput{}, 0, validationError("from must be before to")
	}

	var outs []OrderOutput
	var total int64

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, n, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return err
		}
		total = n

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return err
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})
	if err != nil {
		if ae, ok := AsAppError(err); ok {
			return []OrderOutput{}, 0, ae
		}
		u.logger.Error("admin list orders failed", zap.Error(err))
		return []OrderOutput{}, 0, internalError()
	}
	return outs, total, nil
}

// ステータス更新（CANCELED なら在庫戻し）
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) error {
	if actorAdminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return validationError("invalid id")
	}

	newStatus := model.OrderStatus(strings.TrimSpace(in.Status))
	switch newStatus {
	case model.OrderStatusPending, model.OrderStatusPaid, model.OrderStatusShipped,
		model.OrderStatusCompleted, model.OrderStatusCanceled:
	default:
		return validationError("invalid status")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := findOrderForAdmin(ctx, r, orderID)
		if err != nil {
			return err
		}

		// すでに同じなら何もしない（200）
		if o.Status == newStatus {
			return nil
		}
		if !canTransition(o.Status, newStatus) {
			return validationError(fmt.Sprintf("cannot change order from %s to %s", o.Status, newStatus))
		}
		if err := transitionOrder(ctx, r, orderID, o.Status, newStatus); err != nil {
			return err
		}

		now := u.clock.Now()
		if newStatus == model.OrderStatusCanceled {
			if err := restockCanceledOrder(ctx, r, actorAdminUserID, orderID, now); err != nil {
				return err
			}
		}

		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   statusJSON(string(o.Status)),
			AfterJSON:    statusJSON(string(newStatus)),
			CreatedAt:    now,
		})
	})
	if err != nil {
		return u.mapError("update order status", orderID, err)
	}

	u.logger.Info("order status updated", zap.Int64("order_id", orderID), zap.String("status", string(newStatus)))
	return nil
}

type RecordPaymentInput struct {
	Method        string
	Amount        decimal.Decimal
	TransactionID string

	//nilなら現在時刻
	PaidAt *time.Time
}

// 入金を記録して PENDING → PAID。金額は注文合計と一致が必要。
func (u *AdminOrderUsecase) RecordPayment(ctx context.Context, actorAdminUserID int64, orderID int64, in RecordPaymentInput) (model.Payment, error) {
	if actorAdminUserID <= 0 {
		return model.Payment{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Payment{}, validationError("invalid id")
	}
	method := model.PaymentMethod(strings.TrimSpace(in.Method))
	switch method {
	case model.PaymentMethodCard, model.PaymentMethodBankTransfer, model.PaymentMethodCOD:
	default:
		return model.Payment{}, validationError("invalid payment_method")
	}
	txID := strings.TrimSpace(in.TransactionID)
	if txID == "" || len(txID) > 100 {
		return model.Payment{}, validationError("invalid transaction_id")
	}
	if !in.Amount.IsPositive() {
		return model.Payment{}, validationError("amount must be > 0")
	}

	var out model.Payment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := findOrderForAdmin(ctx, r, orderID)
		if err != nil {
			return err
		}
		if o.Status != model.OrderStatusPending {
			return validationError(fmt.Sprintf("cannot record payment for %s order", o.Status))
		}
		if !in.Amount.Round(moneyPlaces).Equal(o.TotalPrice) {
			return validationError("amount must equal order total " + o.TotalPrice.StringFixed(moneyPlaces))
		}
		if err := transitionOrder(ctx, r, orderID, o.Status, model.OrderStatusPaid); err != nil {
			return err
		}

		now := u.clock.Now()
		paidAt := now
		if in.PaidAt != nil {
			paidAt = *in.PaidAt
		}
		p, err := r.Payments().Create(ctx, model.Payment{
			OrderID:       orderID,
			Method:        method,
			Amount:        in.Amount.Round(moneyPlaces),
			TransactionID: txID,
			PaidAt:        paidAt,
			CreatedAt:     now,
		})
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusConflict, "transaction_id already recorded")
		}
		if err != nil {
			return err
		}
		out = p

		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionRecordPayment,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   statusJSON(string(o.Status)),
			AfterJSON:    fmt.Sprintf(`{"status":%q,"transaction_id":%q}`, model.OrderStatusPaid, txID),
			CreatedAt:    now,
		})
	})
	if err != nil {
		return model.Payment{}, u.mapError("record payment", orderID, err)
	}

	u.logger.Info("payment recorded",
		zap.Int64("order_id", orderID),
		zap.String("transaction_id", txID),
		zap.String("amount", out.Amount.StringFixed(moneyPlaces)))
	return out, nil
}

type RecordShipmentInput struct {
	Carrier        string
	TrackingNumber string

	//nilなら現在時刻
	ShippedAt *time.Time
}

// 出荷を記録して PAID → SHIPPED
func (u *AdminOrderUsecase) RecordShipment(ctx context.Context, actorAdminUserID int64, orderID int64, in RecordShipmentInput) (model.Shipment, error) {
	if actorAdminUserID <= 0 {
		return model.Shipment{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Shipment{}, validationError("invalid id")
	}
	carrier := strings.TrimSpace(in.Carrier)
	tracking := strings.TrimSpace(in.TrackingNumber)
	if carrier == "" || len(carrier) > 100 {
		return model.Shipment{}, validationError("invalid carrier")
	}
	if tracking == "" || len(tracking) > 100 {
		return model.Shipment{}, validationError("invalid tracking_number")
	}

	var out model.Shipment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := findOrderForAdmin(ctx, r, orderID)
		if err != nil {
			return err
		}
		if o.Status != model.OrderStatusPaid {
			return validationError(fmt.Sprintf("cannot ship %s order", o.Status))
		}
		if err := transitionOrder(ctx, r, orderID, o.Status, model.OrderStatusShipped); err != nil {
			return err
		}

		now := u.clock.Now()
		shippedAt := now
		if in.ShippedAt != nil {
			shippedAt = *in.ShippedAt
		}
		sh, err := r.Shipments().Create(ctx, model.Shipment{
			OrderID:        orderID,
			Carrier:        carrier,
			TrackingNumber: tracking,
			Status:         model.ShipmentStatusShipped,
			ShippedAt:      shippedAt,
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		out = sh

		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionRecordShipment,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   statusJSON(string(o.Status)),
			AfterJSON:    fmt.Sprintf(`{"status":%q,"tracking_number":%q}`, model.OrderStatusShipped, tracking),
			CreatedAt:    now,
		})
	})
	if err != nil {
		return model.Shipment{}, u.mapError("record shipment", orderID, err)
	}

	u.logger.Info("shipment recorded", zap.Int64("order_id", orderID), zap.String("carrier", carrier))
	return out, nil
}

func findOrderForAdmin(ctx context.Context, r repo.TxRepos, orderID int64) (model.Order, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return o, err
}

// fromのときだけtoへ。同時更新で先に変わっていたら409。
func transitionOrder(ctx context.Context, r repo.TxRepos, orderID int64, from, to model.OrderStatus) error {
	ok, err := r.Orders().UpdateStatus(ctx, orderID, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return NewHTTPError(http.StatusConflict, "order status changed concurrently")
	}
	return nil
}

// 注文の明細を、確定時に減らした倉庫へ戻す
func restockCanceledOrder(ctx context.Context, r repo.TxRepos, actorUserID int64, orderID int64, now time.Time) error {
	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	placed, err := placedWarehouses(ctx, r, orderID)
	if err != nil {
		return err
	}
	oid := orderID
	for _, it := range items {
		if err := restockProduct(ctx, r, restockTarget{
			ActorUserID: actorUserID,
			ProductID:   it.ProductID,
			ProductName: it.ProductNameSnapshot,
			WarehouseID: placed[it.ProductID],
			Quantity:    it.Quantity,
			Reason:      model.AdjustmentOrderCanceled,
			OrderID:     &oid,
		}, now); err != nil {
			return err
		}
	}
	return nil
}

func (u *AdminOrderUsecase) mapError(op string, orderID int64, err error) error {
	if ae, ok := AsAppError(err); ok {
		return ae
	}
	u.logger.Error(op+" failed", zap.Int64("order_id", orderID), zap.Error(err))
	return internalError()
}

type AuditLogQuery struct {
	ResourceType string
	ResourceID   *int64
	Action       string
	From         *time.Time
	To           *time.Time
	Page         int
	Limit        int
}

// 監査ログ一覧（新しい順）
func (u *AdminOrderUsecase) ListAuditLogs(ctx context.Context, q AuditLogQuery) ([]model.AuditLog, error) {
	if q.Page < 1 {
		return []model.AuditLog{}, validationError("invalid page")
	}
	if q.Limit < 1 || q.Limit > 200 {
		return []model.AuditLog{}, validationError("invalid limit")
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return []model.AuditLog{}, validationError("from must be before to")
	}

	f := repo.AuditLogFilter{
		ResourceID:  q.ResourceID,
		CreatedFrom: q.From,
		CreatedTo:   q.To,
		Limit:       q.Limit,
		Offset:      (q.Page - 1) * q.Limit,
	}
	if rt := model.AuditResourceType(strings.TrimSpace(q.ResourceType)); rt != "" {
		switch rt {
		case model.AuditResourceProduct, model.AuditResourceOrder, model.AuditResourceReturn, model.AuditResourceUser:
		default:
			return []model.AuditLog{}, validationError("invalid resource_type")
		}
		f.ResourceType = &rt
	}
	if a := model.AuditAction(strings.TrimSpace(q.Action)); a != "" {
		f.Action = &a
	}

	var logs []model.AuditLog
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		logs, err = r.AuditLogs().List(ctx, f)
		return err
	})
	if err != nil {
		u.logger.Error("list audit logs failed", zap.Error(err))
		return []model.AuditLog{}, internalError()
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}

// 期間パラメータ（RFC3339）。空ならnil。
func ParseDateTimeRFC3339(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, validationError("invalid datetime: " + s)
	}
	return &t, nil
}
