package proxy

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

const redirectBody = `<html><head><title>Network Authentication Required</title></head>
<body>
<p>This network requires authentication before it can be used.</p>
<p><a href="%s">Sign in to continue</a></p>
</body></html>
`

// writeRedirect answers with a pointer at the portal. 302 satisfies OS
// captive-portal probes; 511 is the honest status for everything else.
// The client address travels in the query string so the portal knows
// which device it is authenticating even behind the relay.
func (s *Server) writeRedirect(conn net.Conn, status int, source string) {
	loginURL := s.loginURL(source)
	body := fmt.Sprintf(redirectBody, loginURL)

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	fmt.Fprintf(&b, "Location: %s\r\n", loginURL)
	fmt.Fprintf(&b, "X-Login-URL: %s\r\n", loginURL)
	b.WriteString("Cache-Control: no-cache\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("Connection: close\r\n\r\n")
	b.WriteString(body)

	if _, err := io.WriteString(conn, b.String()); err != nil {
		s.logger.Debug().Err(err).Str("source", source).Msg("redirect write failed")
	}
}

func (s *Server) loginURL(source string) string {
	return fmt.Sprintf("%s/api/auth/fallback?client_ip=%s", s.cfg.PortalURL, url.QueryEscape(source))
}

// writeStatus answers a bare status line and closes.
func writeStatus(conn net.Conn, status int) {
	resp := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Length: 0\r\nConnection: close\r\n\r\n",
		status, http.StatusText(status))
	_, _ = io.WriteString(conn, resp)
}
