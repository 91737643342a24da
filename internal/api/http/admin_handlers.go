package httpapi

import (
	"net/http"
	"time"

	"github.com/netgate/netgate/internal/domain/session"
)

type sessionInfo struct {
	IPAddress  string     `json:"ip_address"`
	UserAgent  *string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

type attemptInfo struct {
	IPAddress string    `json:"ip_address"`
	Username  string    `json:"username"`
	Success   bool      `json:"success"`
	UserAgent *string   `json:"user_agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	limit, _ := parseLimitOffset(r, 100, 500)
	active, err := s.sessions.List(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("session listing failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	infos := make([]sessionInfo, 0, len(active))
	for _, sess := range active {
		infos = append(infos, toSessionInfo(sess))
	}
	respondSuccess(w, "", map[string]interface{}{
		"sessions": infos,
		"total":    len(infos),
	})
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 500)
	attempts, err := s.attempts.ListAttempts(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("attempt log listing failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logs := make([]attemptInfo, 0, len(attempts))
	for _, a := range attempts {
		logs = append(logs, attemptInfo{
			IPAddress: a.Address,
			Username:  a.Username,
			Success:   a.Success,
			UserAgent: a.UserAgent,
			Timestamp: a.CreatedAt,
		})
	}
	respondSuccess(w, "", map[string]interface{}{
		"logs":   logs,
		"limit":  limit,
		"offset": offset,
	})
}

func toSessionInfo(sess *session.Session) sessionInfo {
	return sessionInfo{
		IPAddress:  sess.Address,
		UserAgent:  sess.UserAgent,
		CreatedAt:  sess.CreatedAt,
		ExpiresAt:  sess.ExpiresAt,
		LastSeenAt: sess.LastSeenAt,
	}
}
