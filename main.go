// Package main is the entry point for the business ledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/yelinaung/business-ledger/internal/config"
	"gitlab.com/yelinaung/business-ledger/internal/database"
	"gitlab.com/yelinaung/business-ledger/internal/exchange"
	"gitlab.com/yelinaung/business-ledger/internal/httpapi"
	"gitlab.com/yelinaung/business-ledger/internal/logger"
	"gitlab.com/yelinaung/business-ledger/internal/repository"
	"gitlab.com/yelinaung/business-ledger/internal/repository/memory"
	"gitlab.com/yelinaung/business-ledger/internal/service"
	"gitlab.com/yelinaung/business-ledger/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// memoryDatabaseURL selects the in-process store. Nothing is persisted.
const memoryDatabaseURL = "memory://"

const (
	defaultTokenTTL = 30 * 24 * time.Hour
	shutdownTimeout = 15 * time.Second
)

type stores struct {
	users        service.UserStore
	businesses   service.BusinessStore
	transactions service.TransactionStore
	close        func()
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("business-ledger %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	logger.InitHashSalt()

	st, err := openStores(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer st.close()

	if len(os.Args) > 1 && os.Args[1] == "issue-token" {
		if err := issueToken(ctx, cfg, st.users, os.Args[2:]); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to issue token")
		}
		return
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg, version)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to set up telemetry")
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer flushCancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	rateCache := exchange.NewRateCache(
		exchange.NewFrankfurterClient(cfg.ExchangeAPIURL, cfg.ExchangeTimeout),
		cfg.ExchangeCacheTTL,
	)
	rates := exchange.NewService(rateCache)
	services := service.New(st.users, st.businesses, st.transactions, rates)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Services:  services,
			Rates:     rates,
			RateCache: rateCache,
			JWTSecret: []byte(cfg.JWTSecret),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("addr", cfg.HTTPAddr).Str("version", version).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error().Err(err).Msg("HTTP server failed")
		}
	case <-ctx.Done():
		logger.Log.Info().Msg("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}

func openStores(ctx context.Context, databaseURL string) (*stores, error) {
	if databaseURL == memoryDatabaseURL {
		logger.Log.Warn().Msg("Using in-memory storage, data is lost on exit")
		store := memory.New()
		return &stores{
			users:        store.Users(),
			businesses:   store.Businesses(),
			transactions: store.Transactions(),
			close:        func() {},
		}, nil
	}

	pool, err := database.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Log.Info().Msg("Database initialized successfully")

	return &stores{
		users:        repository.NewUserRepository(pool),
		businesses:   repository.NewBusinessRepository(pool),
		transactions: repository.NewTransactionRepository(pool),
		close:        pool.Close,
	}, nil
}

// issueToken prints a bearer token for a registered user:
//
//	business-ledger issue-token EMAIL [TTL]
func issueToken(ctx context.Context, cfg *config.Config, users service.UserStore, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: business-ledger issue-token EMAIL [TTL]")
	}
	ttl := defaultTokenTTL
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid TTL %q", args[1])
		}
		ttl = d
	}

	user, err := users.GetByEmail(ctx, args[0])
	if err != nil {
		return err
	}
	token, err := httpapi.SignToken([]byte(cfg.JWTSecret), user, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
