// Package policy decides what the interceptor does with each pending
// request: forward it, redirect the client to the portal, or reject it.
package policy

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/netgate/netgate/internal/domain/session"
)

// Config carries the policy knobs.
type Config struct {
	PortalHost         string
	BypassRules        string
	ProbeHosts         []string
	ForceRedirectRoots []string
}

// Engine decides actions. Apart from the session lookup it is free of
// side effects, so identical (state, request) pairs always produce the
// same action.
type Engine struct {
	sessions   session.Repository
	bypass     *BypassRules
	probeHosts map[string]struct{}
	forceRoots []string
	logger     zerolog.Logger
}

// NewEngine compiles the bypass rules and builds an engine.
func NewEngine(sessions session.Repository, cfg Config, logger zerolog.Logger) (*Engine, error) {
	bypass, err := CompileBypassRules(cfg.BypassRules, cfg.PortalHost)
	if err != nil {
		return nil, err
	}
	probes := make(map[string]struct{}, len(cfg.ProbeHosts))
	for _, h := range cfg.ProbeHosts {
		probes[strings.ToLower(h)] = struct{}{}
	}
	return &Engine{
		sessions:   sessions,
		bypass:     bypass,
		probeHosts: probes,
		forceRoots: cfg.ForceRedirectRoots,
		logger:     logger.With().Str("service", "policy").Logger(),
	}, nil
}

// Decide returns the action for a pending request.
//
// Bypass rules run before any store I/O so that portal self-traffic
// survives a store outage; everything else fails closed when the store
// cannot be read.
func (e *Engine) Decide(ctx context.Context, req *PendingRequest) Action {
	if e.bypass.Match(req) {
		return ActionForward
	}

	s, err := e.sessions.Get(ctx, req.SourceAddress)
	if err != nil {
		e.logger.Error().Err(err).Str("address", req.SourceAddress).Msg("session lookup failed, rejecting")
		return ActionRejectDrop
	}
	if s != nil {
		return ActionForward
	}

	// Unauthenticated from here on.
	if req.Scheme == SchemeTunnel {
		// A tunnel cannot be redirected once established; refuse it and
		// let plain-HTTP traffic trigger the portal.
		return ActionRejectDrop
	}
	if req.Method == http.MethodOptions {
		// CORS preflight must reach the auth API or the browser blocks
		// the login call itself.
		return ActionForward
	}
	if e.isProbe(req) || e.isForcedRoot(req.Host) {
		return ActionRedirectFound
	}
	if req.Method == http.MethodGet {
		return ActionRedirectPortal
	}
	return ActionRejectForbidden
}

// isProbe recognizes OS connectivity checks (iOS/Android).
func (e *Engine) isProbe(req *PendingRequest) bool {
	host := strings.ToLower(req.Host)
	if _, ok := e.probeHosts[host]; ok {
		return true
	}
	if strings.Contains(host, "connectivitycheck") {
		return true
	}
	path := strings.ToLower(req.Path)
	return strings.Contains(path, "generate_204") || strings.Contains(path, "hotspot-detect")
}

func (e *Engine) isForcedRoot(host string) bool {
	h := strings.ToLower(host)
	for _, root := range e.forceRoots {
		if h == root || strings.HasSuffix(h, "."+root) {
			return true
		}
	}
	return false
}
