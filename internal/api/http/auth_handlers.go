package httpapi

import (
	"errors"
	"net/http"
	"time"

	appAuth "github.com/netgate/netgate/internal/application/auth"
	"github.com/netgate/netgate/internal/domain/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyRequest struct {
	SessionToken string `json:"session_token"`
}

type logoutRequest struct {
	ClientIP string `json:"client_ip,omitempty"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	addr := clientAddress(r)
	ua := userAgent(r)

	res, err := s.authSvc.Login(r.Context(), addr, req.Username, req.Password, ua)
	if err != nil {
		s.respondLoginError(w, addr, err)
		return
	}

	respondSuccess(w, "login successful", map[string]interface{}{
		"session_token": res.Token,
		"expires_in":    int(s.sessionTTL.Seconds()),
		"username":      req.Username,
		"client_ip":     addr,
	})
}

func (s *Server) respondLoginError(w http.ResponseWriter, addr string, err error) {
	var locked *appAuth.LockedError
	switch {
	case errors.As(err, &locked):
		remaining := int(time.Until(locked.Until).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		respondJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"success":           false,
			"error":             "too many failed attempts, try again later",
			"locked_until":      locked.Until.UTC().Format(time.RFC3339),
			"remaining_seconds": remaining,
		})
	case errors.Is(err, appAuth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid username or password")
	default:
		s.logger.Error().Err(err).Str("address", addr).Msg("login failed internally")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionToken == "" {
		respondError(w, http.StatusBadRequest, "session_token is required")
		return
	}

	addr := clientAddress(r)
	if _, err := s.authSvc.Verify(r.Context(), addr, req.SessionToken); err != nil {
		if errors.Is(err, appAuth.ErrInvalidSession) {
			respondError(w, http.StatusUnauthorized, "session invalid or expired")
			return
		}
		s.logger.Error().Err(err).Str("address", addr).Msg("verify failed internally")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondSuccess(w, "session valid", map[string]interface{}{
		"client_ip":     addr,
		"session_valid": true,
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	_ = decodeBody(r, &req)

	addr := req.ClientIP
	if addr == "" {
		addr = clientAddress(r)
	}

	if err := s.authSvc.Logout(r.Context(), addr); err != nil {
		if errors.Is(err, session.ErrUnavailable) {
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}
	respondSuccess(w, "logged out", nil)
}

func userAgent(r *http.Request) *string {
	ua := r.UserAgent()
	if ua == "" {
		return nil
	}
	return &ua
}
