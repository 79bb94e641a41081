// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiromu-dev/torii/internal/platform/ctxutil"
	"github.com/hiromu-dev/torii/internal/platform/middleware"
	"github.com/hiromu-dev/torii/internal/tenant"
)

// newAuthRouter builds a tenant-scoped router the way the server mounts it.
func newAuthRouter(t *testing.T) chi.Router {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tenants:
  - id: 1
    name: acme
    auth:
      type: bearer
      token: secret-token
  - id: 2
    name: globex
    auth:
      type: basic
      username: scim
      password: hunter2
  - id: 3
    name: initech
    auth:
      type: jwt
      secret: jwt-shared-secret
  - id: 4
    name: umbrella
    auth:
      type: anonymous
`), 0o600))

	registry, err := tenant.Load(path)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Route("/{tenant}/scim/v2", func(scim chi.Router) {
		scim.Use(middleware.ResolveTenant(registry))
		scim.Use(middleware.Authenticate())
		scim.Get("/Users", func(writer http.ResponseWriter, request *http.Request) {
			resolved := ctxutil.GetTenant(request.Context())
			writer.Write([]byte(resolved.Name))
		})
	})
	return router
}

// do performs one request with optional headers.
func do(router chi.Router, target string, headers map[string]string) *httptest.ResponseRecorder {
	request := httptest.NewRequest("GET", target, nil)
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

/*
TestResolveTenant tests tenant lookup from the URL segment.
*/
func TestResolveTenant(t *testing.T) {
	router := newAuthRouter(t)

	t.Run("known_tenant_in_context", func(t *testing.T) {
		recorder := do(router, "/umbrella/scim/v2/Users", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "umbrella", recorder.Body.String())
	})

	t.Run("unknown_tenant_404", func(t *testing.T) {
		recorder := do(router, "/nobody/scim/v2/Users", map[string]string{
			"Authorization": "Bearer secret-token",
		})
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

/*
TestAuthenticate_Bearer tests static bearer token enforcement.
*/
func TestAuthenticate_Bearer(t *testing.T) {
	router := newAuthRouter(t)

	t.Run("valid", func(t *testing.T) {
		recorder := do(router, "/acme/scim/v2/Users", map[string]string{
			"Authorization": "Bearer secret-token",
		})
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("scheme_is_case_insensitive", func(t *testing.T) {
		recorder := do(router, "/acme/scim/v2/Users", map[string]string{
			"Authorization": "bearer secret-token",
		})
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("wrong_token", func(t *testing.T) {
		recorder := do(router, "/acme/scim/v2/Users", map[string]string{
			"Authorization": "Bearer wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("missing_header", func(t *testing.T) {
		recorder := do(router, "/acme/scim/v2/Users", nil)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("other_tenant_token_rejected", func(t *testing.T) {
		recorder := do(router, "/acme/scim/v2/Users", map[string]string{
			"Authorization": "Basic c2NpbTpodW50ZXIy",
		})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

/*
TestAuthenticate_Basic tests HTTP Basic enforcement.
*/
func TestAuthenticate_Basic(t *testing.T) {
	router := newAuthRouter(t)

	t.Run("valid", func(t *testing.T) {
		request := httptest.NewRequest("GET", "/globex/scim/v2/Users", nil)
		request.SetBasicAuth("scim", "hunter2")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("wrong_password", func(t *testing.T) {
		request := httptest.NewRequest("GET", "/globex/scim/v2/Users", nil)
		request.SetBasicAuth("scim", "wrong")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("missing_credentials", func(t *testing.T) {
		recorder := do(router, "/globex/scim/v2/Users", nil)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

/*
TestAuthenticate_JWT tests HS256 token enforcement.
*/
func TestAuthenticate_JWT(t *testing.T) {
	router := newAuthRouter(t)

	sign := func(secret string) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}

	t.Run("valid", func(t *testing.T) {
		recorder := do(router, "/initech/scim/v2/Users", map[string]string{
			"Authorization": "Bearer " + sign("jwt-shared-secret"),
		})
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("wrong_secret", func(t *testing.T) {
		recorder := do(router, "/initech/scim/v2/Users", map[string]string{
			"Authorization": "Bearer " + sign("other-secret"),
		})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("missing_token", func(t *testing.T) {
		recorder := do(router, "/initech/scim/v2/Users", nil)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}
