package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"calmledger/internal/backend"
	"calmledger/internal/cli"
	"calmledger/internal/core"
	apphttp "calmledger/internal/http"
	"calmledger/internal/log"
	"calmledger/internal/services"
	"calmledger/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "calmledger:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := cli.LoadEnvFile(); err != nil {
		return err
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentApp)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).Create(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err.Error())
		}
	}()

	store := storage.NewStateStore(res.Slot, cfg.StorageKey, logger)
	initial, report := store.Bootstrap(ctx, core.NewID)
	if report.Fallback() {
		logger.Warn("Started from fallback state",
			log.FieldStorageKey, cfg.StorageKey,
			"missing", report.Missing,
			"corrupt", report.Corrupt,
			"seeded", report.Seeded,
			"skipped", report.Skipped,
			"orphans", report.Orphans)
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolve timezone: %w", err)
	}
	opts := []services.Option{
		services.WithLocation(loc),
		services.WithLogger(logger),
	}
	if res.Publisher != nil {
		opts = append(opts, services.WithPublisher(res.Publisher))
	}
	svc := services.NewLedgerService(initial, store, opts...)

	srvCfg := apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		StatsCacheSize:     cfg.StatsCacheSize,
		StatsCacheTTL:      cfg.StatsCacheTTL,
		Logger:             logger,
	}
	if p, ok := res.Slot.(interface{ Ping(context.Context) error }); ok {
		srvCfg.Ready = p.Ping
	}
	srv := apphttp.NewServer(srvCfg, svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting calmledger server",
			"port", cfg.Port,
			log.FieldBackend, res.Type.String(),
			"accounts", len(initial.Accounts),
			"transactions", len(initial.Transactions))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
