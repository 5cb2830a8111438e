package pds

import (
	"crypto/subtle"
	"net/http"
)

const adminUsername = "admin"

// requireAdmin wraps a handler so that only moderators (HTTP basic auth as "admin")
// reach it.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || s.cfg.AdminPassword == "" ||
			subtle.ConstantTimeCompare([]byte(user), []byte(adminUsername)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.AdminPassword)) != 1 {
			writeXRPCError(w, http.StatusUnauthorized, "AuthenticationRequired", "moderator authentication required")
			return
		}
		next(w, r)
	}
}
