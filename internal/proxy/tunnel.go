package proxy

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/netgate/netgate/internal/application/policy"
)

// tunnel answers a CONNECT request and relays opaque bytes in both
// directions until either side closes or goes idle.
func (s *Server) tunnel(clientConn net.Conn, clientReader *bufio.Reader, pending *policy.PendingRequest) {
	target := net.JoinHostPort(pending.Host, fmt.Sprintf("%d", pending.Port))
	upstream, err := net.DialTimeout("tcp", target, s.cfg.DialTimeout)
	if err != nil {
		s.logger.Warn().Err(err).Str("target", target).Msg("tunnel dial failed")
		writeStatus(clientConn, http.StatusBadGateway)
		return
	}
	defer upstream.Close()

	if _, err := io.WriteString(clientConn, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		return
	}

	// Bytes the client pipelined behind the CONNECT are already sitting
	// in the reader; push them through before the raw relay takes over.
	if n := clientReader.Buffered(); n > 0 {
		buffered, _ := clientReader.Peek(n)
		if _, err := upstream.Write(buffered); err != nil {
			return
		}
		clientReader.Discard(n)
	}

	relay(clientConn, upstream, s.cfg.IdleTimeout)
}

// relay copies in both directions and closes both ends when the first
// direction finishes.
func relay(a, b net.Conn, idle time.Duration) {
	done := make(chan struct{}, 2)
	go func() {
		pump(a, b, idle)
		done <- struct{}{}
	}()
	go func() {
		pump(b, a, idle)
		done <- struct{}{}
	}()

	<-done
	a.Close()
	b.Close()
	<-done
}

// pump copies src to dst until either side fails. The idle timeout is
// refreshed on every read, so only a genuinely stalled peer trips it.
func pump(dst, src net.Conn, idle time.Duration) {
	buf := make([]byte, 32*1024)
	for {
		if idle > 0 {
			_ = src.SetReadDeadline(time.Now().Add(idle))
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
