// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package ornshare

import (
	"log/slog"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/cartographus/internal/database"
	"github.com/tomtom215/cartographus/internal/deobfuscate"
)

var validate = validator.New()

type apiResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Status: "ok", Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Status: "error", Error: message})
}

// handlers bundles the dependencies the sharing boundary's endpoints
// read from or write to.
type handlers struct {
	db       *database.DB
	pipeline *deobfuscate.Pipeline
	enforcer *Enforcer
	logger   *slog.Logger
}

const defaultMappingsLimit = 100
const maxMappingsLimit = 1000

// listMappings handles GET /orn, the §6 public read endpoint: mappings
// at or above min_confidence, most recently used first.
func (h *handlers) listMappings(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, "read") {
		return
	}

	q := mappingsQuery{MinConfidence: 0, Limit: defaultMappingsLimit}
	if v := r.URL.Query().Get("min_confidence"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_confidence must be a number")
			return
		}
		q.MinConfidence = parsed
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = parsed
	}
	if q.Limit > maxMappingsLimit {
		q.Limit = maxMappingsLimit
	}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mappings, err := h.db.ORNMappingsBySource(r.Context(), q.MinConfidence, q.Limit)
	if err != nil {
		h.logger.Error("ornshare: list mappings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list mappings")
		return
	}
	writeJSON(w, http.StatusOK, mappings)
}

// contribute handles POST /orn/contribute, the §6 public write
// endpoint: a community-sourced mapping, capped to
// deobfuscate.CommunityConfidenceCap by the pipeline regardless of the
// confidence submitted here.
func (h *handlers) contribute(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, "write") {
		return
	}

	var req contributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.pipeline.SaveCommunityContribution(r.Context(), req.ObfuscatedHash, req.RealName, req.Confidence); err != nil {
		h.logger.Error("ornshare: save contribution failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save contribution")
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

// authorize enforces action against the requester's role (or the
// enforcer's DefaultRole for unauthenticated callers, when auth isn't
// required). Writes the HTTP response and returns false on denial.
func (h *handlers) authorize(w http.ResponseWriter, r *http.Request, action string) bool {
	role := ""
	if claims := claimsFromContext(r.Context()); claims != nil {
		role = claims.Role
	}
	allowed, err := h.enforcer.EnforceRole(role, "orn", action)
	if err != nil {
		h.logger.Error("ornshare: enforcement error", "error", err)
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return false
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "not authorized for this action")
		return false
	}
	return true
}
