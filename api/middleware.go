/*
middleware.go - API key authorization, actor tracking, request logging

PURPOSE:
  The engine delegates authorization: this middleware consumes the
  configured keys and produces a pass/fail decision plus an actor
  identity for the audit trail. The core never sees any of it.

KEY MODEL:
  Two keys, supplied at startup:
  - service key: required for every /api route
  - admin key:   additionally required for privileged operations
                 (suspend, close, reset)
  When no keys are configured the middleware is a no-op (dev mode) and
  the actor is "anonymous".

SEE ALSO:
  - server.go: Where the middleware is mounted
  - handlers.go: actorFrom() reads the identity set here
*/
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// AUTHORIZATION
// =============================================================================

// Keys holds the configured API keys. Zero value disables auth.
type Keys struct {
	Service string
	Admin   string
}

// Enabled reports whether any key is configured.
func (k Keys) Enabled() bool { return k.Service != "" || k.Admin != "" }

type contextKey string

const actorKey contextKey = "actor"

// actorFrom returns the authenticated actor identity, or "anonymous".
func actorFrom(r *http.Request) string {
	if actor, ok := r.Context().Value(actorKey).(string); ok && actor != "" {
		return actor
	}
	return "anonymous"
}

func keyMatches(presented, configured string) bool {
	return configured != "" &&
		subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}

// RequireKey rejects requests without a valid X-API-Key header when keys
// are configured. The admin key is accepted everywhere the service key is.
func RequireKey(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !keys.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			presented := r.Header.Get("X-API-Key")
			var actor string
			switch {
			case keyMatches(presented, keys.Admin):
				actor = "admin"
			case keyMatches(presented, keys.Service):
				actor = "service"
			default:
				writeError(w, http.StatusUnauthorized, "Missing or invalid API key", nil)
				return
			}
			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin guards privileged operations: suspend, close, reset.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !keys.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			if !keyMatches(r.Header.Get("X-API-Key"), keys.Admin) {
				writeError(w, http.StatusForbidden, "Admin key required", nil)
				return
			}
			ctx := context.WithValue(r.Context(), actorKey, "admin")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// =============================================================================
// REQUEST LOGGING
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Info("request")
		})
	}
}
