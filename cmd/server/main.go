package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/watchtowerhq/watchtower/internal/api"
	"github.com/watchtowerhq/watchtower/internal/balance"
	"github.com/watchtowerhq/watchtower/internal/config"
	"github.com/watchtowerhq/watchtower/internal/database"
	"github.com/watchtowerhq/watchtower/internal/dispatch"
	"github.com/watchtowerhq/watchtower/internal/oracle"
	"github.com/watchtowerhq/watchtower/internal/remote"
	"github.com/watchtowerhq/watchtower/internal/repository"
	"github.com/watchtowerhq/watchtower/internal/scheduler"
	"github.com/watchtowerhq/watchtower/internal/service"
	"github.com/watchtowerhq/watchtower/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "error", Pretty: true})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	// Open database connection and apply migrations
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Str("path", cfg.Database.Path).Msg("connected to database")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create repositories
	snapshotRepo := repository.NewSnapshotRepository(db)
	flowRepo := repository.NewFlowRepository(db)
	peakRepo := repository.NewPeakRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	baselineRepo := repository.NewBaselineRepository(db)

	// External data sources
	priceOracle := oracle.NewClient(cfg.Sources.PriceServiceURL)
	balanceSource := balance.NewClient(cfg.Sources.WalletServiceURL, cfg.Account.TrackedAddress)

	// Optional remote mirror
	var remoteStore remote.Store
	if cfg.Remote.Enabled {
		s3Store, err := remote.NewS3Store(ctx, cfg.Remote, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize remote store")
		}
		remoteStore = s3Store
	}

	// Alert execution
	var agent dispatch.Agent
	if cfg.Dispatch.ExecutorURL != "" {
		agent = dispatch.NewHTTPAgent(cfg.Dispatch.ExecutorURL, cfg.Dispatch.Timeout)
	} else {
		agent = dispatch.NewLogAgent(log)
	}
	coordinator := dispatch.NewCoordinator(agent, log)

	// Create services
	systemService := service.NewSystemService(db)
	peakService := service.NewPeakService(peakRepo, flowRepo, auditRepo, log)
	pnlService := service.NewPnLService(snapshotRepo, flowRepo, baselineRepo, auditRepo, log)
	ledgerService := service.NewLedgerService(flowRepo, peakService, auditRepo, priceOracle, cfg.Account, log)
	tradeService := service.NewTradeService(tradeRepo, log)
	triggerService := service.NewTriggerService(
		cfg.Triggers, cfg.Sampler.InitGrace,
		tradeRepo, peakService, pnlService, coordinator, log,
	)
	samplerService := service.NewSamplerService(
		balanceSource, priceOracle,
		snapshotRepo, tradeRepo, auditRepo,
		peakService, triggerService, remoteStore,
		cfg.Account, cfg.Sampler, log,
	)

	// Maintenance jobs
	jobs := scheduler.New(snapshotRepo, remoteStore, cfg.Jobs, log)
	if err := jobs.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start maintenance jobs")
	}
	defer jobs.Stop()

	// Create router
	router := api.NewRouter(api.Services{
		System:    systemService,
		Sampler:   samplerService,
		PnL:       pnlService,
		Peaks:     peakService,
		Trades:    tradeService,
		Ledger:    ledgerService,
		Snapshots: snapshotRepo,
		Audit:     auditRepo,
	}, cfg, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := samplerService.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := coordinator.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("shutdown with error")
	}

	log.Info().Msg("server exited")
}
