package proxy

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/netgate/netgate/internal/application/policy"
)

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	source := sourceAddress(conn)

	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
	br := bufio.NewReader(conn)
	req, err := http.ReadRequest(br)
	if err != nil {
		// Malformed or half-open connection; nothing sensible to answer.
		s.logger.Debug().Err(err).Str("source", source).Msg("unreadable request")
		return
	}
	defer req.Body.Close()

	pending := classify(req, source)
	action := s.engine.Decide(ctx, pending)

	s.logger.Info().
		Str("source", source).
		Str("method", pending.Method).
		Str("host", pending.Host).
		Int("port", pending.Port).
		Str("action", string(action)).
		Msg("request classified")

	switch action {
	case policy.ActionForward:
		s.touch(ctx, source)
		if pending.Scheme == policy.SchemeTunnel {
			s.tunnel(conn, br, pending)
		} else {
			s.forward(conn, req, pending)
		}
	case policy.ActionRedirectFound:
		s.writeRedirect(conn, http.StatusFound, source)
	case policy.ActionRedirectPortal:
		s.writeRedirect(conn, http.StatusNetworkAuthenticationRequired, source)
	case policy.ActionRejectForbidden:
		writeStatus(conn, http.StatusForbidden)
	case policy.ActionRejectDrop:
		// Close without a response. TLS clients surface this as a plain
		// connection failure, which is the only honest answer here.
	}
}

// classify maps a parsed proxy request onto the policy vocabulary.
func classify(req *http.Request, source string) *policy.PendingRequest {
	if req.Method == http.MethodConnect {
		host, port := splitHostPort(req.Host, 443)
		return &policy.PendingRequest{
			SourceAddress: source,
			Method:        req.Method,
			Host:          host,
			Port:          port,
			Scheme:        policy.SchemeTunnel,
		}
	}

	target := req.Host
	if target == "" {
		target = req.URL.Host
	}
	host, port := splitHostPort(target, 80)
	path := req.URL.RequestURI()
	if path == "" {
		path = "/"
	}
	return &policy.PendingRequest{
		SourceAddress: source,
		Method:        req.Method,
		Host:          host,
		Port:          port,
		Path:          path,
		Scheme:        policy.SchemePlain,
	}
}

func splitHostPort(hostport string, defaultPort int) (string, int) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return strings.ToLower(hostport), defaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = defaultPort
	}
	return strings.ToLower(host), port
}

func sourceAddress(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

// touch refreshes the session's last-seen marker. Failures are logged
// and ignored; activity tracking never blocks traffic.
func (s *Server) touch(ctx context.Context, address string) {
	if err := s.sessions.Touch(ctx, address); err != nil {
		s.logger.Warn().Err(err).Str("address", address).Msg("activity touch failed")
	}
}
