// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package ornshare

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/google/uuid"

	"github.com/tomtom215/cartographus/internal/metrics"
)

type contextKey int

const claimsContextKey contextKey = iota

// corsMiddleware builds a go-chi/cors handler from the configured
// origins, mirroring the teacher's production CORS hardening: no
// wildcard credentials, a fixed preflight cache window.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}

// rateLimitMiddleware returns an IP-keyed go-chi/httprate limiter, or a
// no-op when requests is non-positive (rate limiting disabled).
func rateLimitMiddleware(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window, httprate.WithKeyFuncs(httprate.KeyByIP))
}

// statusRecorder wraps a ResponseWriter to capture the status code
// written for the purposes of request metrics, following the teacher's
// own HTTP middleware pattern of a small embedding wrapper around
// WriteHeader.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.statusCode = code
	s.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records request count and latency for the §6 ORN
// sharing boundary, keyed by the matched chi route pattern rather than
// the raw path, so the route label stays a small fixed set.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.RecordORNRequest(route, strconv.Itoa(rec.statusCode), time.Since(start))
	})
}

// requestID stamps every response with an X-Request-ID header, generating
// one when the caller didn't supply it, for correlating sharing-boundary
// traffic with server logs.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// authenticate validates the bearer token when required and stashes the
// resulting Claims in the request context. When JWTRequired is false,
// unauthenticated requests proceed with nil claims and are authorized
// under the enforcer's DefaultRole.
func authenticate(jwtManager *JWTManager, required bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, hasToken := strings.CutPrefix(header, "Bearer ")

			if !hasToken {
				if required {
					writeError(w, http.StatusUnauthorized, "missing bearer token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := jwtManager.ValidateToken(token)
			if err != nil {
				logger.Warn("ornshare: token validation failed", "error", err)
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func claimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}
