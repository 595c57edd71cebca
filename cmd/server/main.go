package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/auth"
	"github.com/mauricegift/jewell-haven-sub000/internal/checkout"
	"github.com/mauricegift/jewell-haven-sub000/internal/config"
	"github.com/mauricegift/jewell-haven-sub000/internal/events"
	"github.com/mauricegift/jewell-haven-sub000/internal/handlers"
	"github.com/mauricegift/jewell-haven-sub000/internal/invoice"
	"github.com/mauricegift/jewell-haven-sub000/internal/mpesa"
	"github.com/mauricegift/jewell-haven-sub000/internal/notify"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	if err := run(cfg); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server has been gracefully shutdown")
}

// newLogger uses JSON output in production unless LOG_FORMAT says otherwise.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config) error {
	db, err := store.NewStore(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	if err := db.Migrate(context.Background()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// doneCh tells internal goroutines to stop; internalWG waits for them.
	doneCh := make(chan struct{})
	internalWG := &sync.WaitGroup{}
	stopInternal := sync.OnceFunc(func() {
		close(doneCh)
		internalWG.Wait()
	})
	defer stopInternal()

	bus, err := events.NewEngine(&events.Config{
		DoneCh:        doneCh,
		InternalSrvWG: internalWG,
	})
	if err != nil {
		return err
	}

	notifier, err := notify.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up notifications: %w", err)
	}
	if _, err := checkout.NewNotificationHandler(bus, db, notifier, internalWG); err != nil {
		return err
	}

	service := checkout.NewService(&checkout.ServiceConfig{
		Store:       db,
		Gateway:     mpesa.NewClient(cfg.Mpesa),
		Bus:         bus,
		OrderPrefix: cfg.OrderPrefix,
		DeliveryFee: cfg.DeliveryFee,
	})

	shutdownCtx, shutdownCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer shutdownCancel()

	router := handlers.NewRouter(&handlers.Config{
		App:      cfg,
		Store:    db,
		Checkout: service,
		Tokens:   auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL),
		Notifier: notifier,
		Invoices: invoice.NewRenderer(invoice.DefaultShop),
		Sessions: handlers.NewSessionStore(cfg),
		Limiter:  handlers.NewRateLimiter(shutdownCtx, 20, time.Minute),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errGrp, groupCtx := errgroup.WithContext(shutdownCtx)

	errGrp.Go(func() error {
		slog.Info("Server starting", "port", cfg.Port, "env", cfg.Environment, "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	if cfg.ReconcileInterval > 0 {
		reconciler := checkout.NewReconciler(service, cfg.ReconcileInterval, cfg.ReconcileWindow)
		errGrp.Go(func() error {
			return reconciler.Run(groupCtx)
		})
	}

	errGrp.Go(func() error {
		<-groupCtx.Done()
		slog.Info("Shutting down server gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server failed to shutdown gracefully: %w", err)
		}
		slog.Info("All pending requests completed")
		return nil
	})

	err = errGrp.Wait()

	slog.Info("Waiting for internal goroutines...")
	stopInternal()
	return err
}
