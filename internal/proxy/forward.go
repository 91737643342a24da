package proxy

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/netgate/netgate/internal/application/policy"
)

// hopHeaders are stripped before forwarding. Connection is re-added as
// "close" so upstreams never hold the relay open.
var hopHeaders = map[string]struct{}{
	"Proxy-Connection":    {},
	"Proxy-Authorization": {},
	"Connection":          {},
	"Keep-Alive":          {},
}

// forward relays one plain HTTP exchange. The request target is
// rewritten to origin-form and the client address is exposed to the
// upstream through the usual forwarding headers.
func (s *Server) forward(clientConn net.Conn, req *http.Request, pending *policy.PendingRequest) {
	target := net.JoinHostPort(pending.Host, fmt.Sprintf("%d", pending.Port))
	upstream, err := net.DialTimeout("tcp", target, s.cfg.DialTimeout)
	if err != nil {
		s.logger.Warn().Err(err).Str("target", target).Msg("upstream dial failed")
		writeStatus(clientConn, http.StatusBadGateway)
		return
	}
	defer upstream.Close()

	// Body reads refresh the client deadline per read, so a client
	// stalling mid-body trips the timeout instead of pinning the
	// goroutine.
	var body io.Reader
	if req.Body != nil {
		body = &idleReader{conn: clientConn, r: req.Body, idle: s.cfg.IdleTimeout}
	}
	if err := s.writeForwardedRequest(upstream, req, body, pending); err != nil {
		s.logger.Warn().Err(err).Str("target", target).Msg("upstream write failed")
		writeStatus(clientConn, http.StatusBadGateway)
		return
	}

	// Relay the response until the upstream closes; Connection: close
	// above guarantees it will.
	pump(clientConn, upstream, s.cfg.IdleTimeout)
}

// idleReader refreshes the connection read deadline before each read,
// mirroring what pump does for raw relays.
type idleReader struct {
	conn net.Conn
	r    io.Reader
	idle time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	if ir.idle > 0 {
		_ = ir.conn.SetReadDeadline(time.Now().Add(ir.idle))
	}
	return ir.r.Read(p)
}

func (s *Server) writeForwardedRequest(upstream net.Conn, req *http.Request, body io.Reader, pending *policy.PendingRequest) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", req.Method, pending.Path)

	hostValue := pending.Host
	if pending.Port != 80 && pending.Port != 443 {
		hostValue = net.JoinHostPort(pending.Host, fmt.Sprintf("%d", pending.Port))
	}
	fmt.Fprintf(&b, "Host: %s\r\n", hostValue)

	for key, values := range req.Header {
		if _, drop := hopHeaders[http.CanonicalHeaderKey(key)]; drop {
			continue
		}
		if http.CanonicalHeaderKey(key) == "Host" {
			continue
		}
		for _, v := range values {
			fmt.Fprintf(&b, "%s: %s\r\n", key, v)
		}
	}

	scheme := "http"
	if pending.Port == 443 {
		scheme = "https"
	}
	fmt.Fprintf(&b, "X-Forwarded-For: %s\r\n", pending.SourceAddress)
	fmt.Fprintf(&b, "X-Real-IP: %s\r\n", pending.SourceAddress)
	fmt.Fprintf(&b, "X-Forwarded-Proto: %s\r\n", scheme)

	// The parser strips Transfer-Encoding and hands us a decoded body,
	// so chunked requests must be re-chunked on the way out.
	chunked := len(req.TransferEncoding) > 0 && req.TransferEncoding[0] == "chunked"
	if chunked {
		b.WriteString("Transfer-Encoding: chunked\r\n")
	}
	b.WriteString("Connection: close\r\n\r\n")

	if _, err := io.WriteString(upstream, b.String()); err != nil {
		return err
	}
	if body == nil {
		return nil
	}
	if chunked {
		cw := httputil.NewChunkedWriter(upstream)
		if _, err := io.Copy(cw, body); err != nil {
			return err
		}
		if err := cw.Close(); err != nil {
			return err
		}
		_, err := io.WriteString(upstream, "\r\n")
		return err
	}
	_, err := io.Copy(upstream, body)
	return err
}
