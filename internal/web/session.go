package web

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/datacleaner/internal/core"
)

// SessionHeader lets API clients that do not keep cookies name their
// session explicitly. It takes precedence over the cookie.
const SessionHeader = "X-Session-ID"

// sessionMiddleware resolves the caller's session id and stores it in the
// request context. A missing or malformed id starts a new session, which is
// announced with a cookie and echoed in SessionHeader.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.sessionID(r)
		if !ok {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     s.cfg.Session.CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(s.cfg.Session.TTL.Seconds()),
				HttpOnly: true,
				Secure:   s.cfg.Session.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(SessionHeader, id)

		next.ServeHTTP(w, r.WithContext(core.ContextWithSessionID(r.Context(), id)))
	})
}

// sessionID reads the session id from the header or cookie. Only UUIDs are
// accepted so arbitrary client strings never become store keys.
func (s *Server) sessionID(r *http.Request) (string, bool) {
	if v := r.Header.Get(SessionHeader); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			return id.String(), true
		}
	}
	if c, err := r.Cookie(s.cfg.Session.CookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String(), true
		}
	}
	return "", false
}
