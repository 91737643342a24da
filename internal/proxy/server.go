// Package proxy implements the interception point all gated devices are
// routed through. It accepts raw TCP connections, reads a single proxy
// request, asks the policy engine what to do with it, and then forwards,
// redirects, or drops.
package proxy

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/netgate/netgate/internal/application/policy"
	"github.com/netgate/netgate/internal/domain/session"
)

// Config carries the interceptor knobs.
type Config struct {
	// PortalURL is the base URL unauthenticated clients are sent to,
	// e.g. "http://192.168.1.10:8080".
	PortalURL string
	// ReadTimeout bounds reading the initial request from the client.
	ReadTimeout time.Duration
	// IdleTimeout bounds inactivity while relaying data.
	IdleTimeout time.Duration
	// DialTimeout bounds the upstream connection attempt.
	DialTimeout time.Duration
}

// Server is the proxy accept loop.
type Server struct {
	cfg      Config
	engine   *policy.Engine
	sessions session.Repository
	logger   zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closed   bool
}

// NewServer builds a proxy server around a policy engine. The session
// repository is only used for best-effort activity touches; all gating
// decisions go through the engine.
func NewServer(engine *policy.Engine, sessions session.Repository, cfg Config, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		engine:   engine,
		sessions: sessions,
		logger:   logger.With().Str("service", "proxy").Logger(),
	}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled, handling
// each on its own goroutine. It waits for in-flight connections before
// returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return net.ErrClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("proxy listening")

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Close stops the listener. Serve returns once in-flight connections
// finish.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
}
