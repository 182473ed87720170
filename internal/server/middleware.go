package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/geowander/citytour/internal/nav"
)

type ctxKey int

const (
	ctxKeyMachine ctxKey = iota
	ctxKeyToken
	ctxKeyAdmin
)

// sessionMiddleware resolves the bearer token to the session's
// navigation machine and stores both in the request context.
func sessionMiddleware(sessions *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "session token required")
				return
			}

			m, ok := sessions.Get(token)
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid or expired session token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyMachine, m)
			ctx = context.WithValue(ctx, ctxKeyToken, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func adminAuthMiddleware(admin *AdminStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(adminCookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			info, err := admin.FromSession(r.Context(), cookie.Value)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyAdmin, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found {
		return ""
	}
	return token
}

func machineFrom(r *http.Request) *nav.Machine {
	return r.Context().Value(ctxKeyMachine).(*nav.Machine)
}

func sessionTokenFrom(r *http.Request) string {
	return r.Context().Value(ctxKeyToken).(string)
}

func adminFrom(r *http.Request) AdminInfo {
	return r.Context().Value(ctxKeyAdmin).(AdminInfo)
}
