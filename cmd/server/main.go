package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/renft/marketplace/internal/assets"
	"github.com/renft/marketplace/internal/clock"
	"github.com/renft/marketplace/internal/config"
	"github.com/renft/marketplace/internal/database"
	"github.com/renft/marketplace/internal/engine"
	"github.com/renft/marketplace/internal/funds"
	"github.com/renft/marketplace/internal/handler"
	"github.com/renft/marketplace/internal/middleware"
	"github.com/renft/marketplace/internal/model"
	"github.com/renft/marketplace/internal/queue"
	"github.com/renft/marketplace/internal/repository"
	"github.com/renft/marketplace/internal/router"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	operator := model.Account(cfg.Operator)
	ledger := assets.NewLedger(operator)
	bank := funds.NewBank()
	registry := repository.NewListingRegistry(cfg.MaxListings)
	journal := repository.NewJournalRepo(db)
	accounts := repository.NewAccountRepo(db)

	eng := engine.New(registry, ledger, bank, clock.NewSystem(), journal, operator, engine.Params{
		MinTerm:            cfg.MinLeaseTerm,
		MaxTerm:            cfg.MaxLeaseTerm,
		FeeNum:             cfg.FeeNum,
		FeeDen:             cfg.FeeDen,
		LesseeCanLiquidate: cfg.LesseeCanLiquidate,
	})

	e := echo.New()
	e.HideBanner = true

	// Redis-backed rate limiting on everything; response cache on the
	// public views only. Both degrade to no-ops when Redis is down.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; cache and rate limiting disabled")
	}
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, accounts))
	router.RegisterViews(e, handler.NewViewHandler(eng, journal), cacheMW)
	router.RegisterMarket(e, handler.NewMarketHandler(eng),
		handler.NewWalletHandler(ledger, bank, operator, cfg.DevEndpoints), cfg.JWTSecret)

	// Background consumer mirrors broker traffic into logs/lease.log.
	go func() {
		if err := queue.StartTransitionConsumer(); err != nil {
			log.Printf("lease-consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, operator=%s)", addr, cfg.Env, cfg.Operator)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
