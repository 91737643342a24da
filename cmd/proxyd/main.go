package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/netgate/netgate/internal/application/policy"
	"github.com/netgate/netgate/internal/config"
	"github.com/netgate/netgate/internal/domain/session"
	"github.com/netgate/netgate/internal/infrastructure/postgres"
	"github.com/netgate/netgate/internal/infrastructure/redisstore"
	"github.com/netgate/netgate/internal/proxy"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	displayAppname("netgate proxy")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions, cleanup, err := buildSessionRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer cleanup()

	engine, err := policy.NewEngine(sessions, policy.Config{
		PortalHost:         cfg.PortalHost,
		BypassRules:        cfg.BypassRules,
		ProbeHosts:         cfg.ProbeHosts,
		ForceRedirectRoots: cfg.ForceRedirectRoots,
	}, logger)
	if err != nil {
		log.Fatalf("policy error: %v", err)
	}

	srv := proxy.NewServer(engine, sessions, proxy.Config{
		PortalURL:   cfg.PortalURL(),
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
		DialTimeout: cfg.DialTimeout,
	}, logger)

	logger.Info().
		Str("proxy_addr", cfg.ProxyAddr).
		Str("portal_url", cfg.PortalURL()).
		Str("store", cfg.StoreBackend).
		Msg("interceptor starting")

	if err := srv.ListenAndServe(ctx, cfg.ProxyAddr); err != nil {
		logger.Fatal().Err(err).Msg("proxy server failed")
	}
	logger.Info().Msg("interceptor stopped")
}

func buildSessionRepository(ctx context.Context, cfg *config.Config) (session.Repository, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewSessionRepository(client), func() { _ = client.Close() }, nil
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewSessionRepository(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func displayAppname(appname string) {
	banner := figure.NewFigure(appname, "cybermedium", true)
	banner.Print()
	fmt.Println()
}
