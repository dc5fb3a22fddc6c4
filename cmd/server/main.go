package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/example/xfans/internal/apperrors"
	"github.com/example/xfans/internal/cache"
	"github.com/example/xfans/internal/chain"
	"github.com/example/xfans/internal/config"
	"github.com/example/xfans/internal/database"
	"github.com/example/xfans/internal/routes"
	"github.com/example/xfans/internal/services"
)

func main() {
	cfg := config.Load()

	zapLog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("zap init: %v", err)
	}
	defer zapLog.Sync()
	sugar := zapLog.Sugar()

	db := database.Connect(cfg.DatabaseURL)

	rdb := cache.NewRedisClient(cfg.RedisURL)
	if rdb == nil {
		sugar.Warn("redis unavailable, caching and rate limiting disabled")
	}

	registry := chain.NewRegistry(cfg.ChainRPCURLs, cfg.PaymentContractAddress)

	signer, err := chain.NewSigner(cfg.SignerPrivateKey)
	if err != nil {
		sugar.Fatalw("signer init failed", "error", err)
	}

	payments := services.NewPaymentService(signer, registry, sugar)
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, sugar)
	orders := services.NewOrderService(db, payments, telegram, cfg.OrderTTL, sugar)
	tokens := services.NewTokenService(db, cfg.JWTSecret, cfg.JWTExpires, cfg.RefreshTokenExpires)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := services.NewSweeper(orders, tokens, sugar)
	go sweeper.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:      "X-Fans Backend",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, cfg, routes.Deps{
		DB:       db,
		Redis:    rdb,
		Registry: registry,
		Orders:   orders,
		Tokens:   tokens,
		Log:      sugar,
	})

	go func() {
		<-ctx.Done()
		sugar.Info("shutting down")
		_ = app.Shutdown()
	}()

	sugar.Infow("starting server", "port", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		sugar.Fatalw("server stopped", "error", err)
	}
}

// errorHandler renders every error through the response envelope. Fiber
// errors keep their status; domain errors map through apperrors.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	} else if status := apperrors.HTTPStatus(err); status != fiber.StatusInternalServerError {
		code = status
		message = err.Error()
	}

	return c.Status(code).JSON(fiber.Map{"success": false, "message": message})
}
