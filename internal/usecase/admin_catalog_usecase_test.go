package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"
	"ecorder/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =====================
// 在庫設定
// =====================

func newInventoryUC(s *memStore) *usecase.InventoryUsecase {
	return usecase.NewInventoryUsecase(s, memWarehouses{s}, memInventory{s}, fixedClock{t: testNow}, zap.NewNop())
}

func TestInventoryUsecase_SetStock_CreatesThenUpdates(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()
	uc := newInventoryUC(s)
	adminID := int64(1)

	wh, err := uc.AdminCreateWarehouse(ctx, adminID, usecase.CreateWarehouseInput{Name: "Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, model.WarehouseStatusActive, wh.Status)
	p := s.addProduct("Lamp", "30.00", true)

	rec, err := uc.AdminSetStock(ctx, adminID, usecase.SetStockInput{
		ProductID: p.ID, WarehouseID: wh.ID, Quantity: 5, MinQuantity: 2, Reason: "initial",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.Quantity)
	assert.Equal(t, model.InventoryStatusInStock, rec.Status)

	rec, err = uc.AdminSetStock(ctx, adminID, usecase.SetStockInput{
		ProductID: p.ID, WarehouseID: wh.ID, Quantity: 2, Reason: "recount",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Quantity)
	assert.Equal(t, model.InventoryStatusLowStock, rec.Status)

	require.Len(t, s.adjustments, 2)
	assert.Equal(t, int64(5), s.adjustments[0].Delta)
	assert.Equal(t, int64(-3), s.adjustments[1].Delta)
	assert.Equal(t, "recount", s.adjustments[1].Note)

	require.Len(t, s.auditLogs, 2)
	assert.Equal(t, model.AuditActionUpdateStock, s.auditLogs[1].Action)
	assert.JSONEq(t, `{"warehouse_id":`+strconv.FormatInt(wh.ID, 10)+`,"quantity":5}`, s.auditLogs[1].BeforeJSON)
	assert.JSONEq(t, `{"warehouse_id":`+strconv.FormatInt(wh.ID, 10)+`,"quantity":2}`, s.auditLogs[1].AfterJSON)

	list, err := uc.AdminListStock(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInventoryUsecase_SetStock_Validation(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()
	uc := newInventoryUC(s)
	wh := s.addWarehouse(model.WarehouseStatusActive)

	_, err := uc.AdminSetStock(ctx, 1, usecase.SetStockInput{ProductID: 1, WarehouseID: wh.ID, Quantity: -1, Reason: "x"})
	requireAppError(t, err, http.StatusBadRequest, usecase.CodeValidation)

	_, err = uc.AdminSetStock(ctx, 1, usecase.SetStockInput{ProductID: 1, WarehouseID: wh.ID, Quantity: 1})
	requireAppError(t, err, http.StatusBadRequest, usecase.CodeValidation)

	_, err = uc.AdminSetStock(ctx, 1, usecase.SetStockInput{ProductID: 1, WarehouseID: 9999, Quantity: 1, Reason: "x"})
	requireAppError(t, err, http.StatusBadRequest, usecase.CodeValidation)

	_, err = uc.AdminSetStock(ctx, 1, usecase.SetStockInput{ProductID: 9999, WarehouseID: wh.ID, Quantity: 1, Reason: "x"})
	requireAppError(t, err, http.StatusNotFound, usecase.CodeNotFound)

	_, err = uc.AdminCreateWarehouse(ctx, 1, usecase.CreateWarehouseInput{Name: "x", Status: "CLOSED"})
	requireAppError(t, err, http.StatusBadRequest, usecase.CodeValidation)
}

// =====================
// 割引
// =====================

func TestDiscountUsecase_CreateAndGrant(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()
	users := new(MockUserRepository)
	users.On("FindByID", mock.Anything, int64(20)).Return(&model.User{ID: 20, IsActive: true}, nil)
	users.On("FindByID", mock.Anything, int64(21)).Return(nil, repo.ErrNotFound)

	uc := usecase.NewDiscountUsecase(s, users, fixedClock{t: testNow}, zap.NewNop())

	d, err := uc.AdminCreateDiscount(ctx, 1, usecase.CreateDiscountInput{Code: "WELCOME", Value: dec("100"), Type: "fixed_amount"})
	require.NoError(t, err)

	_, err = uc.AdminCreateDiscount(ctx, 1, usecase.CreateDiscountInput{Code: "WELCOME", Value: dec("5"), Type: "fixed_amount"})
	requireAppError(t, err, http.StatusConflict, usecase.CodeConflict)

	_, err = uc.AdminCreateDiscount(ctx, 1, usecase.CreateDiscountInput{Code: "BAD", Value: dec("5"), Type: "bogo"})
	requireAppError(t, err, http.StatusBadRequest, usecase.CodeValidation)

	ud, err := uc.AdminGrantDiscount(ctx, 1, 20, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), ud.UserID)

	_, err = uc.AdminGrantDiscount(ctx, 1, 20, d.ID)
	requireAppError(t, err, http.StatusConflict, usecase.CodeConflict)

	_, err = uc.AdminGrantDiscount(ctx, 1, 21, d.ID)
	requireAppError(t, err, http.StatusNotFound, usecase.CodeNotFound)

	_, err = uc.AdminGrantDiscount(ctx, 1, 20, 9999)
	requireAppError(t, err, http.StatusNotFound, usecase.CodeNotFound)

	require.Len(t, s.auditLogs, 1)
	assert.Equal(t, model.AuditActionGrantDiscount, s.auditLogs[0].Action)
	assert.Equal(t, int64(20), s.auditLogs[0].ResourceID)
}

// =====================
// 商品（キャッシュ）
// =====================

type MockProductCache struct{ mock.Mock }

func (m *MockProductCache) Get(ctx context.Context, id int64) (model.Product, bool, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Bool(1), args.Error(2)
}

func (m *MockProductCache) Set(ctx context.Context, p model.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProductCache) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func TestProductUsecase_Detail_CacheHitSkipsDB(t *testing.T) {
	s := newMemStore()
	cache := new(MockProductCache)
	cache.On("Get", mock.Anything, int64(77)).Return(model.Product{ID: 77, Name: "Cached", IsActive: true}, true, nil)

	uc := usecase.NewProductUsecase(memProducts{s}, memCategories{s}, cache, zap.NewNop())
	p, err := uc.GetProductDetail(context.Background(), 77)
	require.NoError(t, err)
	assert.Equal(t, "Cached", p.Name)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
}

func TestProductUsecase_Detail_CacheErrorFallsBackToDB(t *testing.T) {
	s := newMemStore()
	p := s.addProduct("Desk", "120.00", true)
	cache := new(MockProductCache)
	cache.On("Get", mock.Anything, p.ID).Return(model.Product{}, false, errors.New("redis down"))
	cache.On("Set", mock.Anything, mock.MatchedBy(func(got model.Product) bool { return got.ID == p.ID })).Return(nil)

	uc := usecase.NewProductUsecase(memProducts{s}, memCategories{s}, cache, zap.NewNop())
	got, err := uc.GetProductDetail(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk", got.Name)
	cache.AssertExpectations(t)
}

func TestProductUsecase_Detail_InactiveIsNotFound(t *testing.T) {
	s := newMemStore()
	p := s.addProduct("Draft", "1.00", false)
	cache := new(MockProductCache)
	cache.On("Get", mock.Anything, p.ID).Return(model.Product{}, false, nil)

	uc := usecase.NewProductUsecase(memProducts{s}, memCategories{s}, cache, zap.NewNop())
	_, err := uc.GetProductDetail(context.Background(), p.ID)
	requireAppError(t, err, http.StatusNotFound, usecase.CodeNotFound)
}

func TestProductUsecase_AdminUpdateInvalidatesCache(t *testing.T) {
	s := newMemStore()
	p := s.addProduct("Chair", "50.00", true)
	cache := new(MockProductCache)
	cache.On("Delete", mock.Anything, p.ID).Return(nil)

	uc := usecase.NewProductUsecase(memProducts{s}, memCategories{s}, cache, zap.NewNop())
	err := uc.AdminUpdateProduct(context.Background(), 1, p.ID, usecase.AdminProductInput{
		Name: "Chair", SKU: "CHAIR-1", Price: dec("55.555"), IsActive: true,
	})
	require.NoError(t, err)
	assertDecimal(t, "55.56", s.products[p.ID].Price)
	cache.AssertExpectations(t)
}

func TestProductUsecase_AdminCreate_Validation(t *testing.T) {
	s := newMemStore()
	uc := usecase.NewProductUsecase(memProducts{s}, memCategories{s}, new(MockProductCache), zap.NewNop())
	ctx := context.Background()

	_, err := uc.AdminCreateProduct(ctx, 1, usecase.AdminProductInput{SKU: "X", Price: dec("1")})
	requireAppError(t, err, http.StatusBadRequest, usecase.CodeValidation)

	_, err = uc.AdminCreateProduct(ctx, 1, usecase.AdminProductInput{Name: "X", SKU: "X", Price: dec("-1")})
	requireAppError(t, err, http.StatusBadRequest, usecase.CodeValidation)

	missing := int64(404)
	_, err = uc.AdminCreateProduct(ctx, 1, usecase.AdminProductInput{Name: "X", SKU: "X", Price: dec("1"), CategoryID: &missing})
	requireAppError(t, err, http.StatusBadRequest, usecase.CodeValidation)

	_, err = uc.AdminCreateProduct(ctx, 1, usecase.AdminProductInput{Name: "X", SKU: "DUP", Price: dec("1")})
	require.NoError(t, err)
	_, err = uc.AdminCreateProduct(ctx, 1, usecase.AdminProductInput{Name: "Y", SKU: "DUP", Price: dec("1")})
	requireAppError(t, err, http.StatusConflict, usecase.CodeConflict)
}

func TestProductUsecase_ListValidation(t *testing.T) {
	s := newMemStore()
	s.addProduct("A", "1.00", true)
	s.addProduct("B", "1.00", false)
	uc := usecase.NewProductUsecase(memProducts{s}, memCategories{s}, new(MockProductCache), zap.NewNop())
	ctx := context.Background()

	out, err := uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)

	lo, hi := dec("10"), dec("5")
	_, err = uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 20, MinPrice: &lo, MaxPrice: &hi})
	requireAppError(t, err, http.StatusBadRequest, usecase.CodeValidation)

	_, err = uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 20, Sort: "random"})
	requireAppError(t, err, http.StatusBadRequest, usecase.CodeValidation)
}
