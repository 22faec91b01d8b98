package handlers

import (
	"context"
	"net/http"
	"strings"

	"medialog/models"
)

type contextKey string

const userContextKey contextKey = "medialog.user"

// SessionResolver maps a session token to its user.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (models.User, error)
}

// SessionCookie is the cookie the auth handler sets on login.
const SessionCookie = "medialog_session"

// RequireAuth resolves the session token from the Authorization header or the
// session cookie and stores the user in the request context. Requests without
// a valid session get 401.
func RequireAuth(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if cookie, err := r.Cookie(SessionCookie); err == nil {
					token = cookie.Value
				}
			}

			user, err := sessions.Resolve(r.Context(), token)
			if err != nil {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// userFrom returns the authenticated user placed in the context by RequireAuth.
func userFrom(r *http.Request) (models.User, bool) {
	user, ok := r.Context().Value(userContextKey).(models.User)
	return user, ok
}

// requireUser writes a 401 and returns false when no user is on the context.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, ok := userFrom(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return "", false
	}
	return user.ID, true
}

// WithUser returns a request carrying the given user, for tests.
func WithUser(r *http.Request, user models.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey, user))
}
