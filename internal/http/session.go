package http

import (
	"context"
	"net/http"

	"spendalyzer/internal/log"
)

// SessionCookie carries the visitor's session id.
const SessionCookie = "spendalyzer_session"

type sessionKey struct{}

// withSession resolves the session cookie, issuing a new session when the
// cookie is missing or the session has expired.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}

		sess, err := s.dash.Ensure(r.Context(), id)
		if err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Session lookup failed",
				log.FieldSessionID, id,
				log.FieldError, err)
			s.fail(w, r, http.StatusInternalServerError, "Session unavailable. Please retry.")
			return
		}
		if sess.ID != id {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess.ID)
		ctx = context.WithValue(ctx, log.LoggerContextKey, log.FromContext(r.Context()).With(log.FieldSessionID, sess.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionID returns the id stored by withSession.
func sessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
