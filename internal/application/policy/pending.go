package policy

// Scheme classifies how the proxy was asked to reach the target.
type Scheme string

const (
	// SchemePlain is an absolute-form HTTP request the proxy can read
	// and rewrite.
	SchemePlain Scheme = "PLAIN"
	// SchemeTunnel is a CONNECT request: after the handshake the proxy
	// only sees opaque bytes, so redirection is impossible.
	SchemeTunnel Scheme = "TUNNEL"
)

// PendingRequest is one in-flight connection being classified. It lives
// only for the duration of a single interception and is never stored.
type PendingRequest struct {
	SourceAddress string
	Method        string
	Host          string
	Port          int
	Path          string
	Scheme        Scheme
}

// Action is the verdict for a pending request.
type Action string

const (
	// ActionForward relays the connection to its target untouched.
	ActionForward Action = "FORWARD"
	// ActionRedirectFound answers 302 pointing at the portal; used for
	// OS connectivity probes and well-known entry domains so the
	// captive-portal sheet opens promptly.
	ActionRedirectFound Action = "REDIRECT_FOUND"
	// ActionRedirectPortal answers 511 Network Authentication Required
	// with the portal location.
	ActionRedirectPortal Action = "REDIRECT_PORTAL"
	// ActionRejectForbidden answers 403 and closes.
	ActionRejectForbidden Action = "REJECT_FORBIDDEN"
	// ActionRejectDrop closes the connection without a response.
	ActionRejectDrop Action = "REJECT_DROP"
)
