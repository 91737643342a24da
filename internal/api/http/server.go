package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	appAuth "github.com/netgate/netgate/internal/application/auth"
	"github.com/netgate/netgate/internal/domain/attempt"
	"github.com/netgate/netgate/internal/domain/session"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	authSvc    *appAuth.Service
	sessions   session.Repository
	attempts   attempt.Repository
	sessionTTL time.Duration
	logger     zerolog.Logger
}

func NewServer(
	authSvc *appAuth.Service,
	sessions session.Repository,
	attempts attempt.Repository,
	sessionTTL time.Duration,
	logger zerolog.Logger,
) *Server {
	return &Server{
		authSvc:    authSvc,
		sessions:   sessions,
		attempts:   attempts,
		sessionTTL: sessionTTL,
		logger:     logger.With().Str("service", "api").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	// The portal frontend is served from its own port, so login calls
	// arrive cross-origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.login)
			r.Post("/verify", s.verify)
			r.Post("/logout", s.logout)
			r.Get("/fallback", s.fallbackForm)
			r.Post("/fallback", s.fallbackSubmit)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/sessions", s.listSessions)
			r.Get("/logs", s.listLogs)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "no such endpoint")
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondSuccess(w http.ResponseWriter, message string, data interface{}) {
	body := map[string]interface{}{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	respondJSON(w, http.StatusOK, body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// clientAddress resolves the device address the caller is acting for.
// The interceptor forwards portal traffic with X-Forwarded-For and
// X-Real-IP set; middleware.RealIP folds those into RemoteAddr.
func clientAddress(r *http.Request) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSpace(addr)
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "netgate-auth-api",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
