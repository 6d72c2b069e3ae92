package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DomeLiquid/lendcore/api"
	"github.com/DomeLiquid/lendcore/config"
	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/ledger"
	"github.com/DomeLiquid/lendcore/logger"
	"github.com/DomeLiquid/lendcore/metrics"
	"github.com/DomeLiquid/lendcore/protocol"
	"github.com/DomeLiquid/lendcore/store/boltstore"
	"github.com/DomeLiquid/lendcore/store/gormstore"
	"github.com/DomeLiquid/lendcore/store/levelstore"
	"github.com/DomeLiquid/lendcore/store/memstore"
	"github.com/facebookgo/clock"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "lendingd.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("build logger")
	}
	defer closer.Close()

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("lendingd stopped")
		closer.Close()
		os.Exit(1)
	}
}

func openStore(cfg config.StoreConfig) (core.StateStore, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return memstore.New(), nil
	case config.StoreSqlite:
		return gormstore.Open(gormstore.DriverSqlite, cfg.DSN)
	case config.StorePostgres:
		return gormstore.Open(gormstore.DriverPostgres, cfg.DSN)
	case config.StoreBolt:
		return boltstore.Open(cfg.DSN)
	case config.StoreLevel:
		return levelstore.Open(cfg.DSN)
	default:
		return nil, pkgerrors.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func run(cfg *config.Config, log *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg.Store)
	if err != nil {
		return pkgerrors.Wrap(err, "open store")
	}
	defer store.Close()

	clk := clock.New()
	opts := []protocol.Option{
		protocol.WithBootstrap(cfg.Bootstrap()),
		protocol.WithMetrics(metrics.Lending()),
	}
	if cfg.AdminKey != "" {
		opts = append(opts, protocol.WithAdmin(cfg.AdminKey))
	}
	ctrl := protocol.New(clk, log, ledger.New(clk, store), core.NewStaticPriceFeed(cfg.Oracle.InitialPrice), opts...)
	if err := ctrl.Restore(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           api.New(ctrl, log, prometheus.DefaultGatherer).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Driver).Msg("lendingd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}
