package usecase_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"
)

// =====================
// in-memory TransactionManager
// WithinTx は全体を1本のロックで直列化し、失敗したらスナップショットへ戻す
// =====================

type memStore struct {
	mu sync.Mutex

	seq int64

	orders       map[int64]model.Order
	orderItems   []model.OrderItem
	carts        map[int64]model.Cart
	cartItems    map[int64]model.CartItem
	warehouses   map[int64]model.Warehouse
	inventory    map[int64]model.InventoryRecord
	adjustments  []model.InventoryAdjustment
	products     map[int64]model.Product
	categories   map[int64]model.Category
	addresses    map[int64]model.Address
	discounts    map[int64]model.Discount
	grants       []model.UserDiscount
	returns      map[int64]model.ReturnRequest
	returnItems  []model.ReturnItem
	payments     []model.Payment
	shipments    []model.Shipment
	auditLogs    []model.AuditLog
	txCount      int
	orderLocks   []int64
	decreaseHook func(ctx context.Context, recordID int64) error
}

func newMemStore() *memStore {
	return &memStore{
		orders:     map[int64]model.Order{},
		carts:      map[int64]model.Cart{},
		cartItems:  map[int64]model.CartItem{},
		warehouses: map[int64]model.Warehouse{},
		inventory:  map[int64]model.InventoryRecord{},
		products:   map[int64]model.Product{},
		categories: map[int64]model.Category{},
		addresses:  map[int64]model.Address{},
		discounts:  map[int64]model.Discount{},
		returns:    map[int64]model.ReturnRequest{},
	}
}

func (s *memStore) nextID() int64 {
	s.seq++
	return s.seq
}

type memSnapshot struct {
	seq         int64
	orders      map[int64]model.Order
	orderItems  []model.OrderItem
	carts       map[int64]model.Cart
	cartItems   map[int64]model.CartItem
	warehouses  map[int64]model.Warehouse
	inventory   map[int64]model.InventoryRecord
	adjustments []model.InventoryAdjustment
	products    map[int64]model.Product
	categories  map[int64]model.Category
	addresses   map[int64]model.Address
	discounts   map[int64]model.Discount
	grants      []model.UserDiscount
	returns     map[int64]model.ReturnRequest
	returnItems []model.ReturnItem
	payments    []model.Payment
	shipments   []model.Shipment
	auditLogs   []model.AuditLog
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySlice[T any](s []T) []T {
	return append([]T(nil), s...)
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		seq:         s.seq,
		orders:      copyMap(s.orders),
		orderItems:  copySlice(s.orderItems),
		carts:       copyMap(s.carts),
		cartItems:   copyMap(s.cartItems),
		warehouses:  copyMap(s.warehouses),
		inventory:   copyMap(s.inventory),
		adjustments: copySlice(s.adjustments),
		products:    copyMap(s.products),
		categories:  copyMap(s.categories),
		addresses:   copyMap(s.addresses),
		discounts:   copyMap(s.discounts),
		grants:      copySlice(s.grants),
		returns:     copyMap(s.returns),
		returnItems: copySlice(s.returnItems),
		payments:    copySlice(s.payments),
		shipments:   copySlice(s.shipments),
		auditLogs:   copySlice(s.auditLogs),
	}
}

func (s *memStore) restore(sn memSnapshot) {
	s.seq = sn.seq
	s.orders = sn.orders
	s.orderItems = sn.orderItems
	s.carts = sn.carts
	s.cartItems = sn.cartItems
	s.warehouses = sn.warehouses
	s.inventory = sn.inventory
	s.adjustments = sn.adjustments
	s.products = sn.products
	s.categories = sn.categories
	s.addresses = sn.addresses
	s.discounts = sn.discounts
	s.grants = sn.grants
	s.returns = sn.returns
	s.returnItems = sn.returnItems
	s.payments = sn.payments
	s.shipments = sn.shipments
	s.auditLogs = sn.auditLogs
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	if err := ctx.Err(); err != nil {
		return err
	}

	sn := s.snapshot()
	err := fn(memTxRepos{s: s})
	if err == nil {
		//commit直前のキャンセルもrollback
		err = ctx.Err()
	}
	if err != nil {
		s.restore(sn)
		return err
	}
	return nil
}

type memTxRepos struct{ s *memStore }

func (r memTxRepos) Orders() repo.OrderRepository         { return memOrders{r.s} }
func (r memTxRepos) OrderItems() repo.OrderItemRepository { return memOrderItems{r.s} }
func (r memTxRepos) Carts() repo.CartRepository           { return memCarts{r.s} }
func (r memTxRepos) CartItems() repo.CartItemRepository   { return memCartItems{r.s} }
func (r memTxRepos) Inventory() repo.InventoryRepository  { return memInventory{r.s} }
func (r memTxRepos) Products() repo.ProductRepository     { return memProducts{r.s} }
func (r memTxRepos) Addresses() repo.AddressRepository    { return memAddresses{r.s} }
func (r memTxRepos) Discounts() repo.DiscountRepository   { return memDiscounts{r.s} }
func (r memTxRepos) Returns() repo.ReturnRepository       { return memReturns{r.s} }
func (r memTxRepos) Payments() repo.PaymentRepository     { return memPayments{r.s} }
func (r memTxRepos) Shipments() repo.ShipmentRepository   { return memShipments{r.s} }
func (r memTxRepos) AuditLogs() repo.AuditLogRepository   { return memAuditLogs{r.s} }

// =====================
// fixtures
// =====================

func (s *memStore) addProduct(name string, price string, active bool) model.Product {
	p := model.Product{
		ID:       s.nextID(),
		Name:     name,
		SKU:      name,
		Price:    dec(price),
		IsActive: active,
	}
	s.products[p.ID] = p
	return p
}

func (s *memStore) addWarehouse(status model.WarehouseStatus) model.Warehouse {
	w := model.Warehouse{ID: s.nextID(), Name: "wh", Status: status}
	s.warehouses[w.ID] = w
	return w
}

func (s *memStore) addStock(productID int64, warehouseID int64, qty int64) model.InventoryRecord {
	rec := model.InventoryRecord{
		ID:          s.nextID(),
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty,
		Status:      model.StatusFor(qty, 0),
	}
	s.inventory[rec.ID] = rec
	return rec
}

func (s *memStore) addAddress(userID int64) model.Address {
	a := model.Address{ID: s.nextID(), UserID: userID, Name: "home", Street: "1 Main", City: "Tokyo", ZipCode: "100", Country: "JP"}
	s.addresses[a.ID] = a
	return a
}

func (s *memStore) addCartItem(userID int64, productID int64, qty int64) {
	cart, _ := memCarts{s}.GetOrCreateByUserID(context.Background(), userID)
	_, _, _ = memCartItems{s}.AddQuantity(context.Background(), cart.ID, productID, qty)
}

func (s *memStore) addDiscount(d model.Discount) model.Discount {
	d.ID = s.nextID()
	s.discounts[d.ID] = d
	return d
}

func (s *memStore) grant(userID int64, discountID int64) {
	_, _ = memDiscounts{s}.Grant(context.Background(), userID, discountID)
}

func (s *memStore) stockOf(recordID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory[recordID].Quantity
}

func (s *memStore) hasCart(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.carts {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// =====================
// Orders
// =====================

type memOrders struct{ s *memStore }

func (m memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := m.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

// 呼ばれた注文IDを記録する（WithinTxが直列なのでロック自体は不要）
func (m memOrders) LockByID(ctx context.Context, orderID int64) (model.Order, error) {
	m.s.orderLocks = append(m.s.orderLocks, orderID)
	return m.FindByID(ctx, orderID)
}

func (m memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var all []model.Order
	for _, o := range m.s.orders {
		if o.UserID == userID {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (m memOrders) Create(ctx context.Context, order model.Order) (int64, error) {
	if order.IdempotencyKey != nil {
		for _, o := range m.s.orders {
			if o.UserID == order.UserID && o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
				return 0, repo.ErrConflict
			}
		}
	}
	order.ID = m.s.nextID()
	m.s.orders[order.ID] = order
	return order.ID, nil
}

func (m memOrders) UpdateStatus(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error) {
	o, ok := m.s.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	m.s.orders[orderID] = o
	return true, nil
}

func (m memOrders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	for _, o := range m.s.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (m memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	var all []model.Order
	for _, o := range m.s.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

func paginate[T any](all []T, page int, limit int) []T {
	start := (page - 1) * limit
	if start >= len(all) {
		return []T{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

type memOrderItems struct{ s *memStore }

func (m memOrderItems) CreateBulk(ctx context.Context, items []model.OrderItem) error {
	for _, it := range items {
		it.ID = m.s.nextID()
		m.s.orderItems = append(m.s.orderItems, it)
	}
	return nil
}

func (m memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	out := []model.OrderItem{}
	for _, it := range m.s.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

// =====================
// Carts
// =====================

type memCarts struct{ s *memStore }

func (m memCarts) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	if c, err := m.FindByUserID(ctx, userID); err == nil {
		return c, nil
	}
	c := model.Cart{ID: m.s.nextID(), UserID: userID}
	m.s.carts[c.ID] = c
	return c, nil
}

func (m memCarts) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	for _, c := range m.s.carts {
		if c.UserID == userID {
			return c, nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (m memCarts) LockByID(ctx context.Context, cartID int64) (model.Cart, error) {
	c, ok := m.s.carts[cartID]
	if !ok {
		return model.Cart{}, repo.ErrNotFound
	}
	return c, nil
}

func (m memCarts) Delete(ctx context.Context, cartID int64) error {
	for id, it := range m.s.cartItems {
		if it.CartID == cartID {
			delete(m.s.cartItems, id)
		}
	}
	delete(m.s.carts, cartID)
	return nil
}

type memCartItems struct{ s *memStore }

func (m memCartItems) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	out := []model.CartItem{}
	for _, it := range m.s.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memCartItems) AddQuantity(ctx context.Context, cartID int64, productID int64, qty int64) (model.CartItem, bool, error) {
	for id, it := range m.s.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			it.Quantity += qty
			m.s.cartItems[id] = it
			return it, false, nil
		}
	}
	it := model.CartItem{ID: m.s.nextID(), CartID: cartID, ProductID: productID, Quantity: qty}
	m.s.cartItems[it.ID] = it
	return it, true, nil
}

func (m memCartItems) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	it, ok := m.s.cartItems[cartItemID]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	m.s.cartItems[cartItemID] = it
	return nil
}

func (m memCartItems) DeleteByID(ctx context.Context, cartItemID int64) error {
	if _, ok := m.s.cartItems[cartItemID]; !ok {
		return repo.ErrNotFound
	}
	delete(m.s.cartItems, cartItemID)
	return nil
}

func (m memCartItems) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	it, ok := m.s.cartItems[cartItemID]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return it, nil
}

func (m memCartItems) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	it, ok := m.s.cartItems[cartItemID]
	if !ok {
		return false, nil
	}
	c, ok := m.s.carts[it.CartID]
	return ok && c.UserID == userID, nil
}

// =====================
// Inventory / Warehouses
// =====================

type memInventory struct{ s *memStore }

func (m memInventory) active(rec model.InventoryRecord) bool {
	w, ok := m.s.warehouses[rec.WarehouseID]
	return ok && w.Status == model.WarehouseStatusActive
}

func (m memInventory) LockByProductIDs(ctx context.Context, productIDs []int64) ([]model.InventoryRecord, error) {
	want := make(map[int64]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	out := []model.InventoryRecord{}
	for _, rec := range m.s.inventory {
		if want[rec.ProductID] && m.active(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].WarehouseID < out[j].WarehouseID
	})
	return out, nil
}

func (m memInventory) LockPrimaryByProductID(ctx context.Context, productID int64) (model.InventoryRecord, error) {
	recs, _ := m.LockByProductIDs(ctx, []int64{productID})
	if len(recs) == 0 {
		return model.InventoryRecord{}, repo.ErrNotFound
	}
	return recs[0], nil
}

func (m memInventory) FindByProductAndWarehouse(ctx context.Context, productID int64, warehouseID int64) (model.InventoryRecord, error) {
	for _, rec := range m.s.inventory {
		if rec.ProductID == productID && rec.WarehouseID == warehouseID {
			return rec, nil
		}
	}
	return model.InventoryRecord{}, repo.ErrNotFound
}

func (m memInventory) ListByProductID(ctx context.Context, productID int64) ([]model.InventoryRecord, error) {
	out := []model.InventoryRecord{}
	for _, rec := range m.s.inventory {
		if rec.ProductID == productID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WarehouseID < out[j].WarehouseID })
	return out, nil
}

func (m memInventory) Create(ctx context.Context, rec model.InventoryRecord) (model.InventoryRecord, error) {
	if _, err := m.FindByProductAndWarehouse(ctx, rec.ProductID, rec.WarehouseID); err == nil {
		return model.InventoryRecord{}, repo.ErrConflict
	}
	rec.ID = m.s.nextID()
	rec.Status = model.StatusFor(rec.Quantity, rec.MinQuantity)
	m.s.inventory[rec.ID] = rec
	return rec, nil
}

func (m memInventory) SetQuantity(ctx context.Context, recordID int64, quantity int64) error {
	rec, ok := m.s.inventory[recordID]
	if !ok {
		return repo.ErrNotFound
	}
	rec.Quantity = quantity
	rec.Status = model.StatusFor(quantity, rec.MinQuantity)
	m.s.inventory[recordID] = rec
	return nil
}

func (m memInventory) DecreaseIfEnough(ctx context.Context, recordID int64, qty int64) (bool, error) {
	if m.s.decreaseHook != nil {
		if err := m.s.decreaseHook(ctx, recordID); err != nil {
			return false, err
		}
	}
	rec, ok := m.s.inventory[recordID]
	if !ok || rec.Quantity < qty {
		return false, nil
	}
	rec.Quantity -= qty
	rec.Status = model.StatusFor(rec.Quantity, rec.MinQuantity)
	m.s.inventory[recordID] = rec
	return true, nil
}

func (m memInventory) Increase(ctx context.Context, recordID int64, qty int64) error {
	rec, ok := m.s.inventory[recordID]
	if !ok {
		return repo.ErrNotFound
	}
	rec.Quantity += qty
	rec.Status = model.StatusFor(rec.Quantity, rec.MinQuantity)
	m.s.inventory[recordID] = rec
	return nil
}

func (m memInventory) ListAdjustmentsByOrderID(ctx context.Context, orderID int64) ([]model.InventoryAdjustment, error) {
	out := []model.InventoryAdjustment{}
	for _, adj := range m.s.adjustments {
		if adj.OrderID != nil && *adj.OrderID == orderID {
			out = append(out, adj)
		}
	}
	return out, nil
}

func (m memInventory) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	adj.ID = m.s.nextID()
	m.s.adjustments = append(m.s.adjustments, adj)
	return nil
}

type memWarehouses struct{ s *memStore }

func (m memWarehouses) Create(ctx context.Context, w model.Warehouse) (model.Warehouse, error) {
	w.ID = m.s.nextID()
	m.s.warehouses[w.ID] = w
	return w, nil
}

func (m memWarehouses) FindByID(ctx context.Context, id int64) (model.Warehouse, error) {
	w, ok := m.s.warehouses[id]
	if !ok {
		return model.Warehouse{}, repo.ErrNotFound
	}
	return w, nil
}

func (m memWarehouses) List(ctx context.Context) ([]model.Warehouse, error) {
	out := []model.Warehouse{}
	for _, w := range m.s.warehouses {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =====================
// Products / Categories
// =====================

type memProducts struct{ s *memStore }

func (m memProducts) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var all []model.Product
	for _, p := range m.s.products {
		if p.IsActive {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, q.Page, q.Limit), int64(len(all)), nil
}

func (m memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := m.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (m memProducts) FindByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	out := make(map[int64]model.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m memProducts) Create(ctx context.Context, p model.Product) (model.Product, error) {
	for _, existing := range m.s.products {
		if existing.SKU == p.SKU {
			return model.Product{}, repo.ErrConflict
		}
	}
	p.ID = m.s.nextID()
	m.s.products[p.ID] = p
	return p, nil
}

func (m memProducts) Update(ctx context.Context, p model.Product) error {
	if _, ok := m.s.products[p.ID]; !ok {
		return repo.ErrNotFound
	}
	m.s.products[p.ID] = p
	return nil
}

func (m memProducts) SoftDelete(ctx context.Context, id int64) error {
	if _, ok := m.s.products[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.s.products, id)
	return nil
}

type memCategories struct{ s *memStore }

func (m memCategories) Create(ctx context.Context, c model.Category) (model.Category, error) {
	c.ID = m.s.nextID()
	m.s.categories[c.ID] = c
	return c, nil
}

func (m memCategories) FindByID(ctx context.Context, id int64) (model.Category, error) {
	c, ok := m.s.categories[id]
	if !ok {
		return model.Category{}, repo.ErrNotFound
	}
	return c, nil
}

func (m memCategories) List(ctx context.Context) ([]model.Category, error) {
	out := []model.Category{}
	for _, c := range m.s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =====================
// Payments / Shipments
// =====================

type memPayments struct{ s *memStore }

func (m memPayments) Create(ctx context.Context, p model.Payment) (model.Payment, error) {
	for _, existing := range m.s.payments {
		if existing.TransactionID == p.TransactionID {
			return model.Payment{}, repo.ErrConflict
		}
	}
	p.ID = m.s.nextID()
	m.s.payments = append(m.s.payments, p)
	return p, nil
}

func (m memPayments) ListByOrderID(ctx context.Context, orderID int64) ([]model.Payment, error) {
	out := []model.Payment{}
	for _, p := range m.s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memShipments struct{ s *memStore }

func (m memShipments) Create(ctx context.Context, sh model.Shipment) (model.Shipment, error) {
	sh.ID = m.s.nextID()
	m.s.shipments = append(m.s.shipments, sh)
	return sh, nil
}

func (m memShipments) ListByOrderID(ctx context.Context, orderID int64) ([]model.Shipment, error) {
	out := []model.Shipment{}
	for _, sh := range m.s.shipments {
		if sh.OrderID == orderID {
			out = append(out, sh)
		}
	}
	return out, nil
}

// =====================
// Addresses
// =====================

type memAddresses struct{ s *memStore }

func (m memAddresses) Create(ctx context.Context, a model.Address) (model.Address, error) {
	a.ID = m.s.nextID()
	m.s.addresses[a.ID] = a
	return a, nil
}

func (m memAddresses) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	out := []model.Address{}
	for _, a := range m.s.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memAddresses) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	a, ok := m.s.addresses[addressID]
	if !ok {
		return model.Address{}, repo.ErrNotFound
	}
	return a, nil
}

func (m memAddresses) FindFirstByUserID(ctx context.Context, userID int64) (model.Address, error) {
	list, _ := m.ListByUserID(ctx, userID)
	if len(list) == 0 {
		return model.Address{}, repo.ErrNotFound
	}
	return list[0], nil
}

// 更新できる列だけ写す（user_id などは変えない）
func (m memAddresses) Update(ctx context.Context, a model.Address) error {
	cur, ok := m.s.addresses[a.ID]
	if !ok {
		return repo.ErrNotFound
	}
	cur.Name = a.Name
	cur.Street = a.Street
	cur.City = a.City
	cur.State = a.State
	cur.ZipCode = a.ZipCode
	cur.Country = a.Country
	cur.Phone = a.Phone
	cur.UpdatedAt = a.UpdatedAt
	m.s.addresses[a.ID] = cur
	return nil
}

func (m memAddresses) Delete(ctx context.Context, addressID int64) error {
	if _, ok := m.s.addresses[addressID]; !ok {
		return repo.ErrNotFound
	}
	delete(m.s.addresses, addressID)
	return nil
}

func (m memAddresses) IsOwnedByUser(ctx context.Context, addressID, userID int64) (bool, error) {
	a, ok := m.s.addresses[addressID]
	return ok && a.UserID == userID, nil
}

// =====================
// Discounts
// =====================

type memDiscounts struct{ s *memStore }

func (m memDiscounts) Create(ctx context.Context, d model.Discount) (model.Discount, error) {
	for _, existing := range m.s.discounts {
		if existing.Code == d.Code {
			return model.Discount{}, repo.ErrConflict
		}
	}
	d.ID = m.s.nextID()
	m.s.discounts[d.ID] = d
	return d, nil
}

func (m memDiscounts) FindByID(ctx context.Context, id int64) (model.Discount, error) {
	d, ok := m.s.discounts[id]
	if !ok {
		return model.Discount{}, repo.ErrNotFound
	}
	return d, nil
}

func (m memDiscounts) Grant(ctx context.Context, userID int64, discountID int64) (model.UserDiscount, error) {
	for _, g := range m.s.grants {
		if g.UserID == userID && g.DiscountID == discountID {
			return model.UserDiscount{}, repo.ErrConflict
		}
	}
	g := model.UserDiscount{ID: m.s.nextID(), UserID: userID, DiscountID: discountID, CreatedAt: time.Now()}
	m.s.grants = append(m.s.grants, g)
	return g, nil
}

func (m memDiscounts) ListGrantedForUser(ctx context.Context, userID int64) ([]repo.GrantedDiscount, error) {
	out := []repo.GrantedDiscount{}
	for _, g := range m.s.grants {
		if g.UserID != userID {
			continue
		}
		if d, ok := m.s.discounts[g.DiscountID]; ok {
			out = append(out, repo.GrantedDiscount{GrantID: g.ID, Discount: d})
		}
	}
	return out, nil
}

// =====================
// Returns
// =====================

type memReturns struct{ s *memStore }

func (m memReturns) Create(ctx context.Context, r model.ReturnRequest) (int64, error) {
	r.ID = m.s.nextID()
	m.s.returns[r.ID] = r
	return r.ID, nil
}

func (m memReturns) CreateItems(ctx context.Context, items []model.ReturnItem) error {
	for _, it := range items {
		it.ID = m.s.nextID()
		m.s.returnItems = append(m.s.returnItems, it)
	}
	return nil
}

func (m memReturns) FindByID(ctx context.Context, id int64) (model.ReturnRequest, error) {
	r, ok := m.s.returns[id]
	if !ok {
		return model.ReturnRequest{}, repo.ErrNotFound
	}
	return r, nil
}

func (m memReturns) ListByUserID(ctx context.Context, userID int64) ([]model.ReturnRequest, error) {
	out := []model.ReturnRequest{}
	for _, r := range m.s.returns {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m memReturns) ListByStatus(ctx context.Context, status model.ReturnStatus, page int, limit int) ([]model.ReturnRequest, int64, error) {
	var all []model.ReturnRequest
	for _, r := range m.s.returns {
		if status == "" || r.Status == status {
			all = append(all, r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (m memReturns) ListItems(ctx context.Context, returnID int64) ([]model.ReturnItem, error) {
	out := []model.ReturnItem{}
	for _, it := range m.s.returnItems {
		if it.ReturnRequestID == returnID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m memReturns) SumRequestedByOrderItem(ctx context.Context, orderID int64) (map[int64]int64, error) {
	out := map[int64]int64{}
	for _, it := range m.s.returnItems {
		r := m.s.returns[it.ReturnRequestID]
		if r.OrderID != orderID || r.Status == model.ReturnStatusRejected {
			continue
		}
		out[it.OrderItemID] += it.Quantity
	}
	return out, nil
}

func (m memReturns) UpdateStatus(ctx context.Context, id int64, from model.ReturnStatus, to model.ReturnStatus) (bool, error) {
	r, ok := m.s.returns[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	m.s.returns[id] = r
	return true, nil
}

// =====================
// AuditLogs
// =====================

type memAuditLogs struct{ s *memStore }

func (m memAuditLogs) Create(ctx context.Context, log model.AuditLog) error {
	log.ID = m.s.nextID()
	m.s.auditLogs = append(m.s.auditLogs, log)
	return nil
}

func (m memAuditLogs) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	return copySlice(m.s.auditLogs), nil
}
