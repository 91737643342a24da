package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	httpapi "github.com/netgate/netgate/internal/api/http"
	appAuth "github.com/netgate/netgate/internal/application/auth"
	"github.com/netgate/netgate/internal/config"
	"github.com/netgate/netgate/internal/domain/attempt"
	"github.com/netgate/netgate/internal/domain/session"
	"github.com/netgate/netgate/internal/infrastructure/postgres"
	"github.com/netgate/netgate/internal/infrastructure/redisstore"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	displayAppname("netgate auth")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions, attempts, cleanup, err := buildRepositories(ctx, cfg)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer cleanup()

	authSvc, err := appAuth.NewService(sessions, attempts, appAuth.Config{
		Username:        cfg.PortalUsername,
		Password:        cfg.PortalPassword,
		SessionTTL:      cfg.SessionTTL,
		MaxAttempts:     cfg.MaxAttempts,
		AttemptWindow:   cfg.AttemptWindow,
		LockoutDuration: cfg.LockoutDuration,
	}, logger)
	if err != nil {
		log.Fatalf("auth service error: %v", err)
	}

	apiServer := httpapi.NewServer(authSvc, sessions, attempts, cfg.SessionTTL, logger)

	httpServer := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// expired-session sweep; lazy demotion on read covers correctness,
	// this keeps the table small
	go sweepExpired(ctx, sessions, logger)

	go func() {
		logger.Info().
			Str("addr", cfg.APIAddr).
			Str("portal_url", cfg.PortalURL()).
			Str("store", cfg.StoreBackend).
			Msg("auth api started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("auth api failed")
		}
	}()

	<-ctx.Done()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}

func sweepExpired(ctx context.Context, sessions session.Repository, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		n, err := sessions.DeleteExpired(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("expired session sweep failed")
			continue
		}
		if n > 0 {
			logger.Info().Int("removed", n).Msg("expired sessions swept")
		}
	}
}

func buildRepositories(ctx context.Context, cfg *config.Config) (session.Repository, attempt.Repository, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			return nil, nil, nil, err
		}
		cleanup := func() { _ = client.Close() }
		return redisstore.NewSessionRepository(client), redisstore.NewAttemptRepository(client), cleanup, nil
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return postgres.NewSessionRepository(pool), postgres.NewAttemptRepository(pool), pool.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func displayAppname(appname string) {
	banner := figure.NewFigure(appname, "cybermedium", true)
	banner.Print()
	fmt.Println()
}
