// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package ornshare implements the public ORN sharing boundary (§6): a
// small chi HTTP API exposing the obfuscated-name deobfuscation cache
// for read and community write, authorized by Casbin RBAC behind an
// optional JWT bearer-token gate. It is the only network-facing surface
// this repo owns; everything else talks NNTP outbound or DuckDB
// in-process.
package ornshare

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/database"
	"github.com/tomtom215/cartographus/internal/deobfuscate"
)

// NewRouter builds the sharing boundary's http.Handler. jwtManager may
// be nil only when cfg.JWTRequired is false, in which case every
// request is treated as the Casbin enforcer's DefaultRole.
func NewRouter(cfg *config.SecurityConfig, db *database.DB, pipeline *deobfuscate.Pipeline, jwtManager *JWTManager, enforcer *Enforcer, logger *slog.Logger) (http.Handler, error) {
	if cfg.JWTRequired && jwtManager == nil {
		return nil, fmt.Errorf("ornshare: jwt_required is set but no JWTManager was provided")
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &handlers{db: db, pipeline: pipeline, enforcer: enforcer, logger: logger}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimitReqs, cfg.RateLimitWindow))

	var authMiddleware func(http.Handler) http.Handler
	if jwtManager != nil {
		authMiddleware = authenticate(jwtManager, cfg.JWTRequired, logger)
	} else {
		authMiddleware = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/orn", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.listMappings)
		r.Post("/contribute", h.contribute)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r, nil
}
