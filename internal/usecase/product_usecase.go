package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 商品詳細のキャッシュ
type ProductCache interface {
	Get(ctx context.Context, id int64) (model.Product, bool, error)
	Set(ctx context.Context, p model.Product) error
	Delete(ctx context.Context, id int64) error
}

type ProductUsecase struct {
	productRepo  repo.ProductRepository
	categoryRepo repo.CategoryRepository
	cache        ProductCache
	logger       *zap.Logger
}

// DI
func NewProductUsecase(
	productRepo repo.ProductRepository,
	categoryRepo repo.CategoryRepository,
	cache ProductCache,
	logger *zap.Logger,
) *ProductUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductUsecase{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		cache:        cache,
		logger:       logger,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page       int
	Limit      int
	Q          string
	CategoryID *int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Sort       string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, validationError("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, validationError("invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, validationError("q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, validationError("min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, validationError("max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, validationError("min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return ProductListOutput{}, validationError("invalid sort")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:       in.Page,
		Limit:      in.Limit,
		Q:          strings.TrimSpace(in.Q),
		CategoryID: in.CategoryID,
		MinPrice:   in.MinPrice,
		MaxPrice:   in.MaxPrice,
		Sort:       in.Sort,
	})
	if err != nil {
		u.logger.Error("list products failed", zap.Error(err))
		return ProductListOutput{}, internalError()
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

// 詳細はキャッシュ優先。キャッシュ障害はDBへフォールバック。
func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, validationError("invalid product id")
	}

	if p, ok, err := u.cache.Get(ctx, productID); err != nil {
		u.logger.Warn("product cache get failed", zap.Int64("product_id", productID), zap.Error(err))
	} else if ok {
		return p, nil
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		u.logger.Error("get product failed", zap.Int64("product_id", productID), zap.Error(err))
		return model.Product{}, internalError()
	}
	if !p.IsActive {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	if err := u.cache.Set(ctx, p); err != nil {
		u.logger.Warn("product cache set failed", zap.Int64("product_id", productID), zap.Error(err))
	}
	return p, nil
}

type AdminProductInput struct {
	Name        string
	Description string
	SKU         string
	Price       decimal.Decimal
	Weight      decimal.Decimal
	Dimensions  string
	IsActive    bool
	CategoryID  *int64
	DiscountID  *int64
}

func (u *ProductUsecase) validateProduct(ctx context.Context, in AdminProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return validationError("name required")
	}
	if strings.TrimSpace(in.SKU) == "" {
		return validationError("sku required")
	}
	if in.Price.IsNegative() {
		return validationError("price must be >= 0")
	}
	if in.Weight.IsNegative() {
		return validationError("weight must be >= 0")
	}
	if in.CategoryID != nil {
		if _, err := u.categoryRepo.FindByID(ctx, *in.CategoryID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return validationError("invalid category_id")
			}
			return err
		}
	}
	return nil
}

func toProduct(in AdminProductInput) model.Product {
	return model.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		SKU:         strings.TrimSpace(in.SKU),
		Price:       in.Price.Round(moneyPlaces),
		Weight:      in.Weight,
		Dimensions:  in.Dimensions,
		IsActive:    in.IsActive,
		CategoryID:  in.CategoryID,
		DiscountID:  in.DiscountID,
	}
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID int64, in AdminProductInput) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := u.validateProduct(ctx, in); err != nil {
		return model.Product{}, u.mapError("create product", err)
	}

	p, err := u.productRepo.Create(ctx, toProduct(in))
	if errors.Is(err, repo.ErrConflict) {
		return model.Product{}, NewHTTPError(http.StatusConflict, "sku already exists")
	}
	if err != nil {
		return model.Product{}, u.mapError("create product", err)
	}
	return p, nil
}

func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, adminUserID int64, productID int64, in AdminProductInput) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return validationError("invalid product id")
	}
	if err := u.validateProduct(ctx, in); err != nil {
		return u.mapError("update product", err)
	}

	p := toProduct(in)
	p.ID = productID
	err := u.productRepo.Update(ctx, p)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if errors.Is(err, repo.ErrConflict) {
		return NewHTTPError(http.StatusConflict, "sku already exists")
	}
	if err != nil {
		return u.mapError("update product", err)
	}

	u.invalidate(ctx, productID)
	return nil
}

func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, adminUserID int64, productID int64) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return validationError("invalid product id")
	}

	err := u.productRepo.SoftDelete(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return u.mapError("delete product", err)
	}

	u.invalidate(ctx, productID)
	return nil
}

func (u *ProductUsecase) invalidate(ctx context.Context, productID int64) {
	if err := u.cache.Delete(ctx, productID); err != nil {
		u.logger.Warn("product cache delete failed", zap.Int64("product_id", productID), zap.Error(err))
	}
}

type CreateCategoryInput struct {
	Name     string
	ParentID *int64
}

func (u *ProductUsecase) ListCategories(ctx context.Context) ([]model.Category, error) {
	cs, err := u.categoryRepo.List(ctx)
	if err != nil {
		return []model.Category{}, u.mapError("list categories", err)
	}
	return cs, nil
}

func (u *ProductUsecase) AdminCreateCategory(ctx context.Context, adminUserID int64, in CreateCategoryInput) (model.Category, error) {
	if adminUserID <= 0 {
		return model.Category{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Category{}, validationError("name required")
	}
	if in.ParentID != nil {
		_, err := u.categoryRepo.FindByID(ctx, *in.ParentID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.Category{}, validationError("invalid parent_id")
		}
		if err != nil {
			return model.Category{}, u.mapError("create category", err)
		}
	}

	c, err := u.categoryRepo.Create(ctx, model.Category{Name: name, ParentID: in.ParentID})
	if err != nil {
		return model.Category{}, u.mapError("create category", err)
	}
	return c, nil
}

func (u *ProductUsecase) mapError(op string, err error) error {
	if ae, ok := AsAppError(err); ok {
		return ae
	}
	u.logger.Error(op+" failed", zap.Error(err))
	return internalError()
}
