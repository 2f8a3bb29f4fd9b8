package main

import (
	"fmt"
	"os"

	"ecorder/internal/config"
	"ecorder/internal/handler"
	"ecorder/internal/infra/cache"
	"ecorder/internal/infra/db"
	infraRepo "ecorder/internal/infra/repository"
	"ecorder/internal/logging"
	"ecorder/internal/server"
	"ecorder/internal/usecase"
	"ecorder/internal/validator"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	//.envは無くてもよい（本番は環境変数）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	//商品キャッシュ（REDIS_URL未設定なら無効）
	var productCache usecase.ProductCache = cache.NopProductCache{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewProductRedisCache(cfg.RedisURL, cfg.ProductCacheTTL)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		productCache = rc
		logger.Info("product cache enabled", zap.Duration("ttl", cfg.ProductCacheTTL))
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	categoryRepo := infraRepo.NewCategoryGormRepository(gormDB)
	warehouseRepo := infraRepo.NewWarehouseGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	clock := usecase.SystemClock{}

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg.JWTSecret, cfg.JWTTTL, userRepo, validator.NewAuthValidator(userRepo), clock, logger)
	productUC := usecase.NewProductUsecase(productRepo, categoryRepo, productCache, logger)
	inventoryUC := usecase.NewInventoryUsecase(txm, warehouseRepo, inventoryRepo, clock, logger)
	discountUC := usecase.NewDiscountUsecase(txm, userRepo, clock, logger)
	cartUC := usecase.NewCartUsecase(txm, cartRepo, cartItemRepo, productRepo)
	orderUC := usecase.NewOrderUsecase(txm, usecase.NewDiscountResolver(clock), clock, logger, cfg.OrderTxTimeout)
	returnUC := usecase.NewReturnUsecase(txm, usecase.UUIDGenerator{}, clock, logger)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, clock, logger)
	addressUC := usecase.NewAddressUsecase(addressRepo, clock)

	//Handler生成
	handlers := server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Product:      handler.NewProductHandler(productUC),
		Cart:         handler.NewCartHandler(cartUC),
		Order:        handler.NewOrderHandler(orderUC, returnUC),
		Address:      handler.NewAddressHandler(addressUC),
		AdminProduct: handler.NewAdminProductHandler(productUC, inventoryUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC, returnUC),
		AdminUser:    handler.NewAdminUserHandler(discountUC),
	}

	e := server.New(cfg, logger, userRepo, handlers)
	return server.Start(e, cfg, logger)
}
