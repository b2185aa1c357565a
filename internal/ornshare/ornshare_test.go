// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package ornshare

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/database"
	"github.com/tomtom215/cartographus/internal/deobfuscate"
)

func newTestRouter(t *testing.T, jwtRequired bool) (http.Handler, *JWTManager) {
	t.Helper()

	dbCfg := &config.DatabaseConfig{
		Path:                   filepath.Join(t.TempDir(), "test.duckdb"),
		MaxMemory:              "512MB",
		Threads:                2,
		PreserveInsertionOrder: true,
	}
	db, err := database.New(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	pipeline := deobfuscate.New(db, config.DeobfuscationConfig{}, nil, nil)

	secCfg := &config.SecurityConfig{JWTSecret: "test-secret-at-least-32-bytes-long!!", JWTRequired: jwtRequired}
	jwtManager, err := NewJWTManager(secCfg)
	require.NoError(t, err)

	enforcer, err := NewEnforcer(NewEnforcerConfig(config.CasbinConfig{}))
	require.NoError(t, err)
	t.Cleanup(enforcer.Close)

	router, err := NewRouter(secCfg, db, pipeline, jwtManager, enforcer, nil)
	require.NoError(t, err)
	return router, jwtManager
}

func TestListMappings_UnauthenticatedAllowedWhenJWTNotRequired(t *testing.T) {
	router, _ := newTestRouter(t, false)

	req := httptest.NewRequest(http.MethodGet, "/orn", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListMappings_RejectsMissingTokenWhenJWTRequired(t *testing.T) {
	router, _ := newTestRouter(t, true)

	req := httptest.NewRequest(http.MethodGet, "/orn", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContribute_WriterRoleCanContribute(t *testing.T) {
	router, jwtManager := newTestRouter(t, true)

	token, err := jwtManager.GenerateToken("alice", "contributor")
	require.NoError(t, err)

	body := `{"obfuscated_hash":"abc123","real_name":"Real.Release-GROUP","confidence":0.9}`
	req := httptest.NewRequest(http.MethodPost, "/orn/contribute", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestContribute_ReaderRoleCannotContribute(t *testing.T) {
	router, jwtManager := newTestRouter(t, true)

	token, err := jwtManager.GenerateToken("bob", "reader")
	require.NoError(t, err)

	body := `{"obfuscated_hash":"abc123","real_name":"Real.Release-GROUP","confidence":0.9}`
	req := httptest.NewRequest(http.MethodPost, "/orn/contribute", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestContribute_RejectsMalformedBody(t *testing.T) {
	router, jwtManager := newTestRouter(t, true)
	token, err := jwtManager.GenerateToken("alice", "contributor")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/orn/contribute", bytes.NewBufferString(`{"real_name":""}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnforcer_ContributorCanReadAndWrite(t *testing.T) {
	enforcer, err := NewEnforcer(NewEnforcerConfig(config.CasbinConfig{}))
	require.NoError(t, err)
	defer enforcer.Close()

	allowed, err := enforcer.EnforceRole("contributor", "orn", "write")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = enforcer.EnforceRole("reader", "orn", "write")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestJWTManager_RejectsTamperedToken(t *testing.T) {
	cfg := &config.SecurityConfig{JWTSecret: "test-secret-at-least-32-bytes-long!!"}
	m, err := NewJWTManager(cfg)
	require.NoError(t, err)

	token, err := m.GenerateToken("alice", "contributor")
	require.NoError(t, err)

	_, err = m.ValidateToken(token + "tampered")
	require.Error(t, err)
}
