package main // Entry point package

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-space-reservation/internal/config"
	"github.com/iliyamo/parking-space-reservation/internal/database"
	"github.com/iliyamo/parking-space-reservation/internal/engine"
	"github.com/iliyamo/parking-space-reservation/internal/handler"
	"github.com/iliyamo/parking-space-reservation/internal/middleware"
	"github.com/iliyamo/parking-space-reservation/internal/payment"
	"github.com/iliyamo/parking-space-reservation/internal/queue"
	"github.com/iliyamo/parking-space-reservation/internal/repository"
	"github.com/iliyamo/parking-space-reservation/internal/router"
	"github.com/iliyamo/parking-space-reservation/internal/service"
)

func main() {
	// Load a local .env when present; real deployments set the environment.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: a nil client disables rate limiting and caching.
	rdb := config.NewRedisClient()

	// Persistence and collaborators.
	store := repository.NewReservationRepo(db)
	payments := repository.NewPaymentRepo(db)
	discounts := repository.NewDiscountRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	gateway := payment.New()
	notifier := service.NewQueueNotifier(queue.BrokerURL())

	eng := engine.New(store, payments, gateway, notifier, discounts)

	// Background workers stop when the process receives SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := engine.NewExpiryWorker(eng, store,
		time.Duration(cfg.PendingTTLMin)*time.Minute,
		time.Duration(cfg.PaymentTTLMin)*time.Minute,
		time.Duration(cfg.ExpirySweepSec)*time.Second,
	)
	go worker.Run(ctx)

	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	if rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterMember(e, handler.NewReservationHandler(eng), cfg.JWTSecret)
	router.RegisterOwnerReservations(e, handler.NewOwnerReservationHandler(eng), cfg.JWTSecret)

	var cacheMW echo.MiddlewareFunc
	if rdb != nil {
		cacheMW = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}
	router.RegisterPublic(e, handler.NewSpaceHandler(store), cacheMW)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
