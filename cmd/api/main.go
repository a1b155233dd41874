package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/MrJamesThe3rd/cafenet/internal/backup"
	"github.com/MrJamesThe3rd/cafenet/internal/config"
	"github.com/MrJamesThe3rd/cafenet/internal/export"
	cafeHttp "github.com/MrJamesThe3rd/cafenet/internal/http"
	"github.com/MrJamesThe3rd/cafenet/internal/http/auth"
	backupHandler "github.com/MrJamesThe3rd/cafenet/internal/http/backup"
	exportHandler "github.com/MrJamesThe3rd/cafenet/internal/http/export"
	importHandler "github.com/MrJamesThe3rd/cafenet/internal/http/importcsv"
	productHandler "github.com/MrJamesThe3rd/cafenet/internal/http/product"
	reportHandler "github.com/MrJamesThe3rd/cafenet/internal/http/report"
	salesHandler "github.com/MrJamesThe3rd/cafenet/internal/http/sales"
	undoHandler "github.com/MrJamesThe3rd/cafenet/internal/http/undo"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
	"github.com/MrJamesThe3rd/cafenet/internal/stockimport"
	"github.com/MrJamesThe3rd/cafenet/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.DB.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	ledgerService := ledger.NewService(store, ledger.Options{
		LowStockThreshold: cfg.Inventory.LowStockThreshold,
		HistoryLimit:      cfg.Inventory.HistoryLimit,
	})

	handlers := cafeHttp.Handlers{
		Products: productHandler.NewHandler(ledgerService),
		Undo:     undoHandler.NewHandler(ledgerService),
		Sales:    salesHandler.NewHandler(ledgerService),
		Report:   reportHandler.NewHandler(ledgerService),
		Import:   importHandler.NewHandler(stockimport.NewService(ledgerService)),
		Export:   exportHandler.NewHandler(export.NewService(ledgerService)),
	}

	var coordinator *backup.Coordinator
	if cfg.Backup.Enabled {
		coordinator = backup.NewCoordinator(store, backup.Config{
			Dir:      cfg.Backup.Dir,
			Interval: cfg.Backup.Interval,
			Retain:   cfg.Backup.Retain,
		})
		handlers.Backups = backupHandler.NewHandler(coordinator)
	}

	opts := cafeHttp.Options{AllowedOrigins: cfg.CORS.AllowedOrigins}
	if cfg.Auth.Secret != "" {
		opts.Auth = auth.New(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	} else {
		slog.Warn("AUTH_SECRET is not set, the API is unauthenticated")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           cafeHttp.New(opts, handlers),
		ReadHeaderTimeout: cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	if coordinator != nil {
		g.Go(func() error {
			coordinator.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("starting server", "addr", server.Addr, "driver", cfg.DB.Driver)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("shutdown with error", "error", err)
		closeStore()
		os.Exit(1)
	}

	slog.Info("stopped")
}
