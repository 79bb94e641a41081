// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package discovery_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiromu-dev/torii/internal/discovery"
	"github.com/hiromu-dev/torii/internal/platform/ctxutil"
	"github.com/hiromu-dev/torii/internal/tenant"
)

// newDiscoveryRouter mounts the discovery handler behind a fixed tenant.
func newDiscoveryRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ten := &tenant.Tenant{ID: 1, Name: "acme"}
			next.ServeHTTP(writer, request.WithContext(ctxutil.WithTenant(request.Context(), ten)))
		})
	})
	discovery.NewHandler("https://scim.example.com").RegisterRoutes(router)
	return router
}

// getJSON performs a request and decodes the JSON body.
func getJSON(t *testing.T, router chi.Router, target string) (int, map[string]any) {
	t.Helper()

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("GET", target, nil))

	var body map[string]any
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	}
	return recorder.Code, body
}

/*
TestServiceProviderConfig tests the capability document.
*/
func TestServiceProviderConfig(t *testing.T) {
	router := newDiscoveryRouter()

	status, body := getJSON(t, router, "/ServiceProviderConfig")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, []any{"urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"}, body["schemas"])
	assert.Equal(t, map[string]any{"supported": true}, body["patch"])
	assert.Equal(t, map[string]any{"supported": true}, body["etag"])

	bulk := body["bulk"].(map[string]any)
	assert.Equal(t, false, bulk["supported"])

	filterCaps := body["filter"].(map[string]any)
	assert.Equal(t, true, filterCaps["supported"])

	meta := body["meta"].(map[string]any)
	assert.Equal(t, "https://scim.example.com/acme/scim/v2/ServiceProviderConfig", meta["location"])
}

/*
TestListSchemas tests the schema listing envelope.
*/
func TestListSchemas(t *testing.T) {
	router := newDiscoveryRouter()

	status, body := getJSON(t, router, "/Schemas")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, float64(3), body["totalResults"])
	resources := body["Resources"].([]any)
	require.Len(t, resources, 3)

	ids := make([]string, 0, 3)
	for _, item := range resources {
		ids = append(ids, item.(map[string]any)["id"].(string))
	}
	assert.Contains(t, ids, "urn:ietf:params:scim:schemas:core:2.0:User")
	assert.Contains(t, ids, "urn:ietf:params:scim:schemas:core:2.0:Group")
	assert.Contains(t, ids, "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User")
}

/*
TestGetSchema tests fetching one schema definition by URN.
*/
func TestGetSchema(t *testing.T) {
	router := newDiscoveryRouter()

	t.Run("user_schema", func(t *testing.T) {
		status, body := getJSON(t, router, "/Schemas/urn:ietf:params:scim:schemas:core:2.0:User")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "User", body["name"])

		attributes := body["attributes"].([]any)
		require.NotEmpty(t, attributes)

		var userName map[string]any
		for _, item := range attributes {
			attribute := item.(map[string]any)
			if attribute["name"] == "userName" {
				userName = attribute
			}
		}
		require.NotNil(t, userName)
		assert.Equal(t, "string", userName["type"])
		assert.Equal(t, true, userName["required"])
		assert.Equal(t, "server", userName["uniqueness"])
	})

	t.Run("unknown_schema", func(t *testing.T) {
		status, _ := getJSON(t, router, "/Schemas/urn:unknown")
		assert.Equal(t, http.StatusNotFound, status)
	})
}

/*
TestResourceTypes tests the ResourceTypes collection and lookup.
*/
func TestResourceTypes(t *testing.T) {
	router := newDiscoveryRouter()

	t.Run("list", func(t *testing.T) {
		status, body := getJSON(t, router, "/ResourceTypes")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(2), body["totalResults"])
	})

	t.Run("get_user", func(t *testing.T) {
		status, body := getJSON(t, router, "/ResourceTypes/User")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "/Users", body["endpoint"])
		assert.Equal(t, "urn:ietf:params:scim:schemas:core:2.0:User", body["schema"])

		extensions := body["schemaExtensions"].([]any)
		require.Len(t, extensions, 1)
		assert.Equal(t, "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User",
			extensions[0].(map[string]any)["schema"])
	})

	t.Run("get_group", func(t *testing.T) {
		status, body := getJSON(t, router, "/ResourceTypes/Group")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "/Groups", body["endpoint"])
	})

	t.Run("unknown", func(t *testing.T) {
		status, _ := getJSON(t, router, "/ResourceTypes/Device")
		assert.Equal(t, http.StatusNotFound, status)
	})
}
