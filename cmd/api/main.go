package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/gateway"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	"storefront/internal/infra/guestcart"
	infraRedis "storefront/internal/infra/redis"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/server"
	"storefront/internal/usecase"
	"storefront/internal/worker"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	//.envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.GoEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal("db connection failed", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.CartMerge{},
	); err != nil {
		log.Fatal("db migration failed", zap.Error(err))
	}

	//ゲストカート保存先
	redisClient, err := infraRedis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	guestStore := guestcart.NewRedisStore(redisClient, cfg.GuestCartTTL, log)

	//決済ゲートウェイ
	gw := gateway.New(cfg, log)

	//Repository（GORM実装）生成
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//Usecase生成
	productUC := usecase.NewProductUsecase(productRepo)
	cartUC := usecase.NewCartUsecase(cartRepo, cartRepo, productRepo)
	guestCartUC := usecase.NewGuestCartUsecase(guestStore, productRepo)
	mergeUC := usecase.NewMergeUsecase(txManager, guestStore, log)
	orderUC := usecase.NewOrderUsecase(txManager, orderRepo, gw, log)
	paymentUC := usecase.NewPaymentUsecase(txManager, orderRepo, gw, log)

	//Handler生成
	h := server.Handlers{
		Product:   handler.NewProductHandler(productUC),
		Cart:      handler.NewCartHandler(cartUC, mergeUC),
		GuestCart: handler.NewGuestCartHandler(guestCartUC),
		Order:     handler.NewOrderHandler(orderUC),
		Payment:   handler.NewPaymentHandler(paymentUC),
	}

	srv := server.New(cfg, h)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//期限切れPENDING注文の掃除
	expirer := worker.NewOrderExpirer(txManager, orderRepo, cfg.PendingOrderTTL, cfg.OrderSweepInterval, log)
	go expirer.Run(ctx)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}
