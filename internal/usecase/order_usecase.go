package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 注文確定（カート→注文）
// 在庫確認・価格計算・住所解決・注文作成・在庫減算・カート削除を1トランザクションで行う。
type OrderUsecase struct {
	tx        repo.TransactionManager
	discounts *DiscountResolver
	clock     Clock
	logger    *zap.Logger
	timeout   time.Duration
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	discounts *DiscountResolver,
	clock Clock,
	logger *zap.Logger,
	timeout time.Duration,
) *OrderUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderUsecase{
		tx:        tx,
		discounts: discounts,
		clock:     clock,
		logger:    logger,
		timeout:   timeout,
	}
}

type PlaceOrderInput struct {
	//nilならid最小の住所
	AddressID *int64

	//任意。同じキーなら同じ注文を返す
	IdempotencyKey string
}

type PlaceOrderOutput struct {
	OrderID    int64           `json:"order_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Replayed   bool            `json:"-"`
}

type OrderItemOutput struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

type OrderOutput struct {
	ID             int64             `json:"id"`
	UserID         int64             `json:"user_id"`
	Status         string            `json:"status"`
	AddressID      *int64            `json:"address_id,omitempty"`
	DiscountID     *int64            `json:"discount_id,omitempty"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	TotalPrice     decimal.Decimal   `json:"total_price"`
	CreatedAt      time.Time         `json:"created_at"`
	Items          []OrderItemOutput `json:"items"`

	//詳細のときだけ
	Payments  []model.Payment  `json:"payments,omitempty"`
	Shipments []model.Shipment `json:"shipments,omitempty"`
}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (PlaceOrderOutput, error) {
	if userID <= 0 {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return PlaceOrderOutput{}, validationError("invalid idempotency key")
	}

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	var out PlaceOrderOutput

	//注文処理はトランザクション
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		if key != "" {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err != nil {
				return err
			}
			if found {
				out = PlaceOrderOutput{OrderID: existing.ID, TotalPrice: existing.TotalPrice, Replayed: true}
				return nil
			}
		}

		placed, err := u.place(ctx, r, userID, in.AddressID, key)
		if err != nil {
			return err
		}
		out = placed
		return nil
	})

	//同じキーの注文が同時に確定された。
	//先に確定した側がカートを消していると、こちらは一意制約ではなく空カートで失敗する。
	if key != "" && (errors.Is(err, repo.ErrConflict) || errors.Is(err, ErrEmptyCart)) {
		if replay, ok := u.findReplay(ctx, userID, key); ok {
			u.logger.Info("order placement replayed after concurrent commit",
				zap.Int64("user_id", userID),
				zap.Int64("order_id", replay.OrderID))
			return replay, nil
		}
	}

	if err != nil {
		return PlaceOrderOutput{}, u.placementError(ctx, userID, err)
	}

	if out.Replayed {
		u.logger.Info("order placement replayed",
			zap.Int64("user_id", userID),
			zap.Int64("order_id", out.OrderID))
	} else {
		u.logger.Info("order placed",
			zap.Int64("user_id", userID),
			zap.Int64("order_id", out.OrderID),
			zap.String("total_price", out.TotalPrice.StringFixed(moneyPlaces)))
	}
	return out, nil
}

// tx内の本処理。エラーを返せば全部rollbackされる。
func (u *OrderUsecase) place(ctx context.Context, r repo.TxRepos, userID int64, addressSelector *int64, key string) (PlaceOrderOutput, error) {
	//カート取得（無ければ作る）→ 行ロック
	cart, err := r.Carts().GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	if _, err := r.Carts().LockByID(ctx, cart.ID); err != nil {
		//同時の注文確定で削除された
		if errors.Is(err, repo.ErrNotFound) {
			return PlaceOrderOutput{}, emptyCartError()
		}
		return PlaceOrderOutput{}, err
	}

	cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	if len(cartItems) == 0 {
		return PlaceOrderOutput{}, emptyCartError()
	}

	//在庫行をロックしてから確認（商品ID昇順）
	productIDs := sortedProductIDs(cartItems)
	records, err := r.Inventory().LockByProductIDs(ctx, productIDs)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	stock := primaryRecords(records)

	products, err := r.Products().FindByIDs(ctx, productIDs)
	if err != nil {
		return PlaceOrderOutput{}, err
	}

	//カートの順に確認。最初に失敗した明細で中断
	for _, ci := range cartItems {
		p, ok := products[ci.ProductID]
		if !ok || !p.IsActive {
			return PlaceOrderOutput{}, validationError(fmt.Sprintf("product %d is unavailable", ci.ProductID))
		}
		rec, ok := stock[ci.ProductID]
		if !ok {
			return PlaceOrderOutput{}, inventoryNotFoundError(p.ID, p.Name)
		}
		if rec.Quantity < ci.Quantity {
			return PlaceOrderOutput{}, insufficientStockError(p.ID, p.Name)
		}
	}

	//価格計算（現在の価格）
	lines := make([]PriceLine, 0, len(cartItems))
	for _, ci := range cartItems {
		lines = append(lines, PriceLine{UnitPrice: products[ci.ProductID].Price, Quantity: ci.Quantity})
	}
	subtotal := Subtotal(lines)

	discount, err := u.discounts.ResolveForUser(ctx, r.Discounts(), userID)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	total, discountAmount := ApplyDiscount(subtotal, discount)

	//配送先
	addressID, err := resolveShippingAddress(ctx, r.Addresses(), userID, addressSelector)
	if err != nil {
		return PlaceOrderOutput{}, err
	}

	//注文作成
	now := u.clock.Now()
	order := model.Order{
		UserID:         userID,
		AddressID:      &addressID,
		Status:         model.OrderStatusPending,
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TotalPrice:     total,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if discount != nil {
		order.DiscountID = &discount.ID
	}
	if key != "" {
		order.IdempotencyKey = &key
	}

	orderID, err := r.Orders().Create(ctx, order)
	if err != nil {
		return PlaceOrderOutput{}, err
	}

	//明細（名前と単価を固定）
	orderItems := make([]model.OrderItem, 0, len(cartItems))
	for _, ci := range cartItems {
		p := products[ci.ProductID]
		orderItems = append(orderItems, model.OrderItem{
			OrderID:             orderID,
			ProductID:           p.ID,
			ProductNameSnapshot: p.Name,
			UnitPriceSnapshot:   p.Price,
			Quantity:            ci.Quantity,
			CreatedAt:           now,
		})
	}
	if err := r.OrderItems().CreateBulk(ctx, orderItems); err != nil {
		return PlaceOrderOutput{}, err
	}

	//在庫減算（減らす直前にもう一度数量を確認）
	for _, ci := range cartItems {
		p := products[ci.ProductID]
		rec := stock[ci.ProductID]

		ok, err := r.Inventory().DecreaseIfEnough(ctx, rec.ID, ci.Quantity)
		if err != nil {
			return PlaceOrderOutput{}, err
		}
		if !ok {
			return PlaceOrderOutput{}, insufficientStockError(p.ID, p.Name)
		}

		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   p.ID,
			WarehouseID: rec.WarehouseID,
			ActorUserID: userID,
			Delta:       -ci.Quantity,
			Reason:      model.AdjustmentOrderPlaced,
			OrderID:     &orderID,
			CreatedAt:   now,
		}); err != nil {
			return PlaceOrderOutput{}, err
		}
	}

	//最後にカートを明細ごと削除
	if err := r.Carts().Delete(ctx, cart.ID); err != nil {
		return PlaceOrderOutput{}, err
	}

	return PlaceOrderOutput{OrderID: orderID, TotalPrice: total}, nil
}

// 指定があれば本人の住所か確認、無ければid最小の住所
func resolveShippingAddress(ctx context.Context, addresses repo.AddressRepository, userID int64, selector *int64) (int64, error) {
	if selector != nil {
		if *selector <= 0 {
			return 0, invalidAddressError()
		}
		a, err := addresses.FindByID(ctx, *selector)
		if errors.Is(err, repo.ErrNotFound) {
			return 0, invalidAddressError()
		}
		if err != nil {
			return 0, err
		}
		if a.UserID != userID {
			return 0, invalidAddressError()
		}
		return a.ID, nil
	}

	a, err := addresses.FindFirstByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, noAddressOnFileError()
	}
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

func sortedProductIDs(items []model.CartItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// 商品ごとの引当先（warehouse_id最小）
func primaryRecords(records []model.InventoryRecord) map[int64]model.InventoryRecord {
	out := make(map[int64]model.InventoryRecord, len(records))
	for _, rec := range records {
		cur, ok := out[rec.ProductID]
		if !ok || rec.WarehouseID < cur.WarehouseID {
			out[rec.ProductID] = rec
		}
	}
	return out
}

func (u *OrderUsecase) findReplay(ctx context.Context, userID int64, key string) (PlaceOrderOutput, bool) {
	var out PlaceOrderOutput
	found := false
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		existing, ok, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return err
		}
		if ok {
			out = PlaceOrderOutput{OrderID: existing.ID, TotalPrice: existing.TotalPrice, Replayed: true}
			found = true
		}
		return nil
	})
	if err != nil {
		return PlaceOrderOutput{}, false
	}
	return out, found
}

// 業務エラーはそのまま、タイムアウトはTimeout、それ以外は内部エラーに丸める
func (u *OrderUsecase) placementError(ctx context.Context, userID int64, err error) error {
	if ae, ok := AsAppError(err); ok {
		u.logger.Warn("order placement rejected",
			zap.Int64("user_id", userID),
			zap.String("code", string(ae.Code)),
			zap.Int64("product_id", ae.ProductID))
		return ae
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		u.logger.Warn("order placement timed out", zap.Int64("user_id", userID), zap.Error(err))
		return timeoutError()
	}

	u.logger.Error("order placement failed", zap.Int64("user_id", userID), zap.Error(err))
	return internalError()
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page int, limit int) ([]OrderOutput, int64, error) {
	if userID <= 0 {
		return []OrderOutput{}, 0, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		return []OrderOutput{}, 0, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return []OrderOutput{}, 0, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	var outs []OrderOutput
	var total int64

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, n, err := r.Orders().ListByUserID(ctx, userID, page, limit)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		total = n

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, 0, err
	}
	return outs, total, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		payments, err := r.Payments().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		shipments, err := r.Shipments().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		out.Payments = payments
		out.Shipments = shipments
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}

	return OrderOutput{
		ID:             o.ID,
		UserID:         o.UserID,
		Status:         string(o.Status),
		AddressID:      o.AddressID,
		DiscountID:     o.DiscountID,
		Subtotal:       o.Subtotal,
		DiscountAmount: o.DiscountAmount,
		TotalPrice:     o.TotalPrice,
		CreatedAt:      o.CreatedAt,
		Items:          outItems,
	}
}
