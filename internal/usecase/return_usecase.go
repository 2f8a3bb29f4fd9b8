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

// IDを作る約束（RMA番号など）
type IDGenerator interface {
	NewID() string
}

// 返品申請と、管理者による承認・却下・返金
type ReturnUsecase struct {
	tx     repo.TransactionManager
	idGen  IDGenerator
	clock  Clock
	logger *zap.Logger
}

func NewReturnUsecase(tx repo.TransactionManager, idGen IDGenerator, clock Clock, logger *zap.Logger) *ReturnUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReturnUsecase{tx: tx, idGen: idGen, clock: clock, logger: logger}
}

type ReturnItemInput struct {
	OrderItemID int64
	Quantity    int64
	Description string
}

type CreateReturnInput struct {
	Reason string
	Items  []ReturnItemInput

	//nilなら返品明細の購入時単価×数量
	RefundAmount *decimal.Decimal
}

type ReturnItemOutput struct {
	ID              int64           `json:"id"`
	OrderItemID     int64           `json:"order_item_id"`
	Quantity        int64           `json:"quantity"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
	Description     string          `json:"description"`
}

type ReturnOutput struct {
	ID             int64              `json:"id"`
	OrderID        int64              `json:"order_id"`
	UserID         int64              `json:"user_id"`
	RMANumber      string             `json:"rma_number"`
	Reason         string             `json:"reason"`
	Status         string             `json:"status"`
	RefundAmount   decimal.Decimal    `json:"refund_amount"`
	TrackingNumber string             `json:"tracking_number,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	Items          []ReturnItemOutput `json:"items"`
}

// 返品できる注文ステータス
func isReturnable(s model.OrderStatus) bool {
	return s == model.OrderStatusShipped || s == model.OrderStatusCompleted
}

func (u *ReturnUsecase) CreateReturn(ctx context.Context, userID int64, orderID int64, in CreateReturnInput) (ReturnOutput, error) {
	if userID <= 0 {
		return ReturnOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return ReturnOutput{}, validationError("invalid order id")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return ReturnOutput{}, validationError("reason required")
	}
	if len(in.Items) == 0 {
		return ReturnOutput{}, validationError("items required")
	}

	seen := make(map[int64]struct{}, len(in.Items))
	for _, it := range in.Items {
		if it.OrderItemID <= 0 {
			return ReturnOutput{}, validationError("invalid order_item_id")
		}
		if it.Quantity < 1 {
			return ReturnOutput{}, validationError("quantity must be >= 1")
		}
		if _, dup := seen[it.OrderItemID]; dup {
			return ReturnOutput{}, validationError("duplicate order_item_id")
		}
		seen[it.OrderItemID] = struct{}{}
	}
	if in.RefundAmount != nil && in.RefundAmount.IsNegative() {
		return ReturnOutput{}, validationError("refund_amount must be >= 0")
	}

	var out ReturnOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//注文行をロックして、同じ注文への申請を直列にする（申請済み数量の読み取りがずれない）
		o, err := r.Orders().LockByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return err
		}
		//他人の注文は「存在しない扱い」
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if !isReturnable(o.Status) {
			return validationError("order is not returnable")
		}

		orderItems, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		byID := make(map[int64]model.OrderItem, len(orderItems))
		for _, oi := range orderItems {
			byID[oi.ID] = oi
		}

		//申請済み数量（却下分は除く）
		requested, err := r.Returns().SumRequestedByOrderItem(ctx, orderID)
		if err != nil {
			return err
		}

		maxRefund := decimal.Zero
		items := make([]model.ReturnItem, 0, len(in.Items))
		for _, it := range in.Items {
			oi, ok := byID[it.OrderItemID]
			if !ok {
				return validationError(fmt.Sprintf("order item %d does not belong to order %d", it.OrderItemID, orderID))
			}
			if requested[oi.ID]+it.Quantity > oi.Quantity {
				return validationError(fmt.Sprintf("return quantity exceeds ordered quantity for order item %d", oi.ID))
			}

			line := oi.UnitPriceSnapshot.Mul(decimal.NewFromInt(it.Quantity)).Round(moneyPlaces)
			maxRefund = maxRefund.Add(line)
			items = append(items, model.ReturnItem{
				OrderItemID:     oi.ID,
				Quantity:        it.Quantity,
				PriceAdjustment: line,
				Description:     strings.TrimSpace(it.Description),
			})
		}

		refund := maxRefund
		if in.RefundAmount != nil {
			if in.RefundAmount.GreaterThan(maxRefund) {
				return validationError("refund_amount exceeds returned value")
			}
			refund = in.RefundAmount.Round(moneyPlaces)
		}

		now := u.clock.Now()
		rr := model.ReturnRequest{
			OrderID:      orderID,
			UserID:       userID,
			RMANumber:    u.idGen.NewID(),
			Reason:       reason,
			Status:       model.ReturnStatusPending,
			RefundAmount: refund,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		id, err := r.Returns().Create(ctx, rr)
		if err != nil {
			return err
		}
		rr.ID = id

		for i := range items {
			items[i].ReturnRequestID = id
		}
		if err := r.Returns().CreateItems(ctx, items); err != nil {
			return err
		}

		out = toReturnOutput(rr, items)
		return nil
	})
	if err != nil {
		return ReturnOutput{}, u.mapError("create return", err)
	}

	u.logger.Info("return requested",
		zap.Int64("user_id", userID),
		zap.Int64("order_id", orderID),
		zap.Int64("return_id", out.ID))
	return out, nil
}

func (u *ReturnUsecase) ListMyReturns(ctx context.Context, userID int64) ([]ReturnOutput, error) {
	if userID <= 0 {
		return []ReturnOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var outs []ReturnOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		list, err := r.Returns().ListByUserID(ctx, userID)
		if err != nil {
			return err
		}
		outs, err = withReturnItems(ctx, r, list)
		return err
	})
	if err != nil {
		return []ReturnOutput{}, u.mapError("list returns", err)
	}
	return outs, nil
}

func (u *ReturnUsecase) GetMyReturn(ctx context.Context, userID int64, returnID int64) (ReturnOutput, error) {
	if userID <= 0 {
		return ReturnOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if returnID <= 0 {
		return ReturnOutput{}, validationError("invalid id")
	}

	var out ReturnOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		rr, err := r.Returns().FindByID(ctx, returnID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && rr.UserID != userID) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return err
		}
		items, err := r.Returns().ListItems(ctx, rr.ID)
		if err != nil {
			return err
		}
		out = toReturnOutput(rr, items)
		return nil
	})
	if err != nil {
		return ReturnOutput{}, u.mapError("get return", err)
	}
	return out, nil
}

func (u *ReturnUsecase) AdminList(ctx context.Context, status string, page int, limit int) ([]ReturnOutput, int64, error) {
	if page < 1 {
		return []ReturnOutput{}, 0, validationError("invalid page")
	}
	if limit < 1 || limit > 100 {
		return []ReturnOutput{}, 0, validationError("invalid limit")
	}
	st := model.ReturnStatus(strings.TrimSpace(status))
	switch st {
	case "", model.ReturnStatusPending, model.ReturnStatusApproved, model.ReturnStatusRejected, model.ReturnStatusRefunded:
	default:
		return []ReturnOutput{}, 0, validationError("invalid status")
	}

	var outs []ReturnOutput
	var total int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		list, n, err := r.Returns().ListByStatus(ctx, st, page, limit)
		if err != nil {
			return err
		}
		total = n
		outs, err = withReturnItems(ctx, r, list)
		return err
	})
	if err != nil {
		return []ReturnOutput{}, 0, u.mapError("admin list returns", err)
	}
	return outs, total, nil
}

// PENDING → APPROVED。返品数量を在庫に戻す。
func (u *ReturnUsecase) Approve(ctx context.Context, adminUserID int64, returnID int64) error {
	return u.transition(ctx, adminUserID, returnID, model.ReturnStatusPending, model.ReturnStatusApproved,
		func(r repo.TxRepos, rr model.ReturnRequest) error {
			return u.restock(ctx, r, adminUserID, rr)
		})
}

// PENDING → REJECTED
func (u *ReturnUsecase) Reject(ctx context.Context, adminUserID int64, returnID int64) error {
	return u.transition(ctx, adminUserID, returnID, model.ReturnStatusPending, model.ReturnStatusRejected, nil)
}

// APPROVED → REFUNDED
func (u *ReturnUsecase) MarkRefunded(ctx context.Context, adminUserID int64, returnID int64) error {
	return u.transition(ctx, adminUserID, returnID, model.ReturnStatusApproved, model.ReturnStatusRefunded, nil)
}

func (u *ReturnUsecase) transition(
	ctx context.Context,
	adminUserID int64,
	returnID int64,
	from model.ReturnStatus,
	to model.ReturnStatus,
	after func(r repo.TxRepos, rr model.ReturnRequest) error,
) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if returnID <= 0 {
		return validationError("invalid id")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		rr, err := r.Returns().FindByID(ctx, returnID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return err
		}

		//fromのときだけ更新（同時操作でも1回だけ）
		ok, err := r.Returns().UpdateStatus(ctx, returnID, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return NewHTTPError(http.StatusConflict, fmt.Sprintf("return is not %s", strings.ToLower(string(from))))
		}

		if after != nil {
			if err := after(r, rr); err != nil {
				return err
			}
		}

		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateReturnStatus,
			ResourceType: model.AuditResourceReturn,
			ResourceID:   returnID,
			BeforeJSON:   statusJSON(string(from)),
			AfterJSON:    statusJSON(string(to)),
			CreatedAt:    u.clock.Now(),
		})
	})
	if err != nil {
		return u.mapError("return transition", err)
	}

	u.logger.Info("return status changed",
		zap.Int64("return_id", returnID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

func (u *ReturnUsecase) restock(ctx context.Context, r repo.TxRepos, actorUserID int64, rr model.ReturnRequest) error {
	items, err := r.Returns().ListItems(ctx, rr.ID)
	if err != nil {
		return err
	}
	orderItems, err := r.OrderItems().ListByOrderID(ctx, rr.OrderID)
	if err != nil {
		return err
	}
	byID := make(map[int64]model.OrderItem, len(orderItems))
	for _, oi := range orderItems {
		byID[oi.ID] = oi
	}
	placed, err := placedWarehouses(ctx, r, rr.OrderID)
	if err != nil {
		return err
	}

	returnID := rr.ID
	now := u.clock.Now()
	for _, it := range items {
		oi, ok := byID[it.OrderItemID]
		if !ok {
			return fmt.Errorf("order item %d missing for return %d", it.OrderItemID, rr.ID)
		}
		if err := restockProduct(ctx, r, restockTarget{
			ActorUserID: actorUserID,
			ProductID:   oi.ProductID,
			ProductName: oi.ProductNameSnapshot,
			WarehouseID: placed[oi.ProductID],
			Quantity:    it.Quantity,
			Reason:      model.AdjustmentReturnApproved,
			ReturnID:    &returnID,
		}, now); err != nil {
			return err
		}
	}
	return nil
}

// 在庫戻しの行き先と履歴の内容
type restockTarget struct {
	ActorUserID int64
	ProductID   int64
	ProductName string

	//注文確定時に減らした倉庫。0なら引当先。
	WarehouseID int64

	Quantity int64
	Reason   model.AdjustmentReason
	OrderID  *int64
	ReturnID *int64
}

// 注文確定（ORDER_PLACED）の履歴から、商品ごとに減らした倉庫を引く
func placedWarehouses(ctx context.Context, r repo.TxRepos, orderID int64) (map[int64]int64, error) {
	adjs, err := r.Inventory().ListAdjustmentsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(adjs))
	for _, a := range adjs {
		if a.Reason != model.AdjustmentOrderPlaced {
			continue
		}
		if _, ok := out[a.ProductID]; !ok {
			out[a.ProductID] = a.WarehouseID
		}
	}
	return out, nil
}

// 減らした倉庫の在庫行へ戻す。その行が無ければ引当先へ。
func lockRestockRecord(ctx context.Context, r repo.TxRepos, productID int64, warehouseID int64) (model.InventoryRecord, error) {
	if warehouseID > 0 {
		rec, err := r.Inventory().FindByProductAndWarehouse(ctx, productID, warehouseID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return model.InventoryRecord{}, err
		}
	}
	return r.Inventory().LockPrimaryByProductID(ctx, productID)
}

func restockProduct(ctx context.Context, r repo.TxRepos, t restockTarget, now time.Time) error {
	rec, err := lockRestockRecord(ctx, r, t.ProductID, t.WarehouseID)
	if errors.Is(err, repo.ErrNotFound) {
		return inventoryNotFoundError(t.ProductID, t.ProductName)
	}
	if err != nil {
		return err
	}
	if err := r.Inventory().Increase(ctx, rec.ID, t.Quantity); err != nil {
		return err
	}
	return r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID:   t.ProductID,
		WarehouseID: rec.WarehouseID,
		ActorUserID: t.ActorUserID,
		Delta:       t.Quantity,
		Reason:      t.Reason,
		OrderID:     t.OrderID,
		ReturnID:    t.ReturnID,
		CreatedAt:   now,
	})
}

func withReturnItems(ctx context.Context, r repo.TxRepos, list []model.ReturnRequest) ([]ReturnOutput, error) {
	outs := make([]ReturnOutput, 0, len(list))
	for _, rr := range list {
		items, err := r.Returns().ListItems(ctx, rr.ID)
		if err != nil {
			return nil, err
		}
		outs = append(outs, toReturnOutput(rr, items))
	}
	return outs, nil
}

func (u *ReturnUsecase) mapError(op string, err error) error {
	if ae, ok := AsAppError(err); ok {
		return ae
	}
	u.logger.Error(op+" failed", zap.Error(err))
	return internalError()
}

func statusJSON(status string) string {
	return fmt.Sprintf(`{"status":%q}`, status)
}

func toReturnOutput(rr model.ReturnRequest, items []model.ReturnItem) ReturnOutput {
	outItems := make([]ReturnItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, ReturnItemOutput{
			ID:              it.ID,
			OrderItemID:     it.OrderItemID,
			Quantity:        it.Quantity,
			PriceAdjustment: it.PriceAdjustment,
			Description:     it.Description,
		})
	}
	return ReturnOutput{
		ID:             rr.ID,
		OrderID:        rr.OrderID,
		UserID:         rr.UserID,
		RMANumber:      rr.RMANumber,
		Reason:         rr.Reason,
		Status:         string(rr.Status),
		RefundAmount:   rr.RefundAmount,
		TrackingNumber: rr.TrackingNumber,
		CreatedAt:      rr.CreatedAt,
		Items:          outItems,
	}
}
