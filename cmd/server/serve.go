package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/config"
	"github.com/iliyamo/adspace-marketplace/internal/database"
	"github.com/iliyamo/adspace-marketplace/internal/handler"
	"github.com/iliyamo/adspace-marketplace/internal/ipfs"
	"github.com/iliyamo/adspace-marketplace/internal/middleware"
	"github.com/iliyamo/adspace-marketplace/internal/queue"
	"github.com/iliyamo/adspace-marketplace/internal/repository"
	"github.com/iliyamo/adspace-marketplace/internal/router"
	"github.com/iliyamo/adspace-marketplace/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	chainCfg := config.LoadChainConfig()
	pinCfg := config.LoadPinningConfig()
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()
	queueCfg := config.LoadQueueConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable: rate limiting and caching disabled")
	}

	client, calc, err := dialChain(ctx)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("dial chain: %w", err)
	}
	if op, ok := client.Operator(); ok {
		logger.Info("operator key loaded", zap.String("operator", op.Hex()))
	} else {
		logger.Warn("no operator key: mint and rent are disabled")
	}

	pinner := ipfs.NewPinner(pinCfg, logger)
	if !pinner.Configured() {
		logger.Warn("pinning credentials missing: uploads are disabled")
	}
	fetcher := ipfs.NewFetcher(pinCfg.GatewayURL, &http.Client{Timeout: chainCfg.CallTimeout})

	var events service.EventPublisher
	if queueCfg.Enabled {
		events = queue.NewPublisher(queueCfg.URL, logger)
	}

	listingTTL := cacheCfg.ListingTTL
	if !cacheCfg.Enabled {
		listingTTL = 0
	}
	market := service.New(service.Deps{
		Chain:      client,
		Calculator: calc,
		Metadata:   fetcher,
		Pinner:     pinner,
		Rentals:    repository.NewRentalRepo(db),
		Events:     events,
		Cache:      service.NewListingCache(rdb, cacheCfg.Prefix, listingTTL, logger),
		Log:        logger,
		Options: service.Options{
			Concurrency:        chainCfg.ListingConcurrency,
			FallbackTokenCount: uint64(chainCfg.FallbackTokenCount),
			MaxTokenCount:      uint64(chainCfg.MaxTokenCount),
			CallTimeout:        chainCfg.CallTimeout,
		},
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORS())

	routeOpts := router.Options{
		JWTSecret:   cfg.JWTSecret,
		Cache:       middleware.NewRedisCache(cacheCfg, rdb, logger),
		CanWrite:    market.CanWrite,
		UploadLimit: fmt.Sprintf("%dB", pinCfg.MaxUpload+1<<20),
		RateLimit:   middleware.NewTokenBucket(rlCfg, rdb, logger),
	}
	router.RegisterRoutes(e, market.CanWrite)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg,
		repository.NewUserRepo(db), repository.NewTokenRepo(db), logger), routeOpts)
	router.RegisterMarketplace(e, handler.NewAdSpaceHandler(market, logger), routeOpts)

	closeBackends := func() {
		client.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = db.Close()
	}

	addr := ":" + cfg.Port
	startErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", addr),
			zap.String("env", cfg.Env),
			zap.String("contract", client.ContractAddress().Hex()))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			startErr <- err
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			logger.Info("graceful shutdown initiated")
			err := e.Shutdown(ctx)
			closeBackends()
			return err
		},
	})

	select {
	case err := <-startErr:
		closeBackends()
		return fmt.Errorf("http server: %w", err)
	case code := <-wait:
		logger.Info("server stopped", zap.Int("exit_code", code))
		if code != 0 {
			return fmt.Errorf("shutdown finished with code %d", code)
		}
		return nil
	}
}
