package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devicemail/internal/config"
	"devicemail/internal/db"
	"devicemail/internal/ledger"
	"devicemail/internal/observability/logging"
	"devicemail/internal/observability/metrics"
	impl "devicemail/internal/service/impl"
	"devicemail/internal/store"
	httpx "devicemail/internal/transport/http"
)

const serviceName = "devicemail"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	logger := logging.NewLogger(logging.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	metrics.MustRegister(serviceName)

	logger.Info("starting service")

	// 1) DB
	gdb, err := db.OpenGorm(db.Config{
		Driver: cfg.DatabaseDriver,
		DSN:    cfg.DatabaseURL,
		LogSQL: cfg.DBLogSQL,
	})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}
	st := store.New(gdb)
	if cfg.AutoMigrate {
		if err := st.AutoMigrate(ctx); err != nil {
			logger.Error("automigrate", "error", err)
			os.Exit(1)
		}
	}

	// 2) Ledger
	backend, err := ledgerBackend(cfg)
	if err != nil {
		logger.Error("ledger backend", "error", err)
		os.Exit(1)
	}
	mirror, err := ledger.Open(ctx, backend, logger)
	if err != nil {
		logger.Error("ledger open", "error", err)
		os.Exit(1)
	}

	// 3) Services
	pw := impl.NewPasswordServiceArgon2id()
	ts := impl.NewTokenServiceHS256(impl.TokenConfig{
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		SigningKey: []byte(cfg.SigningKey),
	}, st)
	devices := impl.NewDeviceServiceImpl(st)
	gate := impl.NewGate(st, cfg.DeviceMaxAge)
	as := impl.NewAuthServiceImpl(st, pw, ts, devices, gate, mirror, cfg.DeviceMaxAge)
	ms := impl.NewMailServiceImpl(st, gate)
	ads := impl.NewAdminServiceImpl(st, mirror, cfg.DeviceMaxAge)

	// 4) HTTP router
	handler := httpx.NewRouter(as, ts, ms, ads, httpx.Options{
		TrustProxy:  cfg.TrustProxy,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	slog.Info("devicemail listening", "addr", srv.Addr, "issuer", cfg.Issuer)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func ledgerBackend(cfg config.Config) (ledger.Backend, error) {
	if cfg.LedgerRedisURL == "" {
		return ledger.NewFileBackend(cfg.LedgerPath), nil
	}
	client, err := ledger.ConnectRedis(cfg.LedgerRedisURL)
	if err != nil {
		return nil, err
	}
	return ledger.NewRedisBackend(client, cfg.LedgerRedisKey), nil
}
