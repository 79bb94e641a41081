// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package respond_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/platform/respond"
)

/*
TestScim tests SCIM payload rendering.
*/
func TestScim(t *testing.T) {
	recorder := httptest.NewRecorder()
	respond.Scim(recorder, http.StatusCreated, map[string]any{"id": "u-1"})

	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, "application/scim+json", recorder.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"u-1"}`, recorder.Body.String())
}

/*
TestScimResource tests ETag and Location headers on resource responses.
*/
func TestScimResource(t *testing.T) {
	recorder := httptest.NewRecorder()
	respond.ScimResource(recorder, http.StatusOK, `W/"3"`, "/acme/scim/v2/Users/u-1", map[string]any{"id": "u-1"})

	assert.Equal(t, `W/"3"`, recorder.Header().Get("ETag"))
	assert.Equal(t, "/acme/scim/v2/Users/u-1", recorder.Header().Get("Location"))
}

/*
TestNotModified tests conditional read responses.
*/
func TestNotModified(t *testing.T) {
	recorder := httptest.NewRecorder()
	respond.NotModified(recorder, `W/"3"`)

	assert.Equal(t, http.StatusNotModified, recorder.Code)
	assert.Equal(t, `W/"3"`, recorder.Header().Get("ETag"))
	assert.Empty(t, recorder.Body.String())
}

/*
TestError tests SCIM error body rendering.
*/
func TestError(t *testing.T) {
	t.Run("app_error", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest("GET", "/", nil)

		respond.Error(recorder, request, apperr.BadRequest(apperr.ScimTypeInvalidFilter, "Unparsable filter"))

		assert.Equal(t, http.StatusBadRequest, recorder.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, []any{"urn:ietf:params:scim:api:messages:2.0:Error"}, body["schemas"])
		assert.Equal(t, "400", body["status"])
		assert.Equal(t, "invalidFilter", body["scimType"])
		assert.Equal(t, "Unparsable filter", body["detail"])
	})

	t.Run("unexpected_error_hidden", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest("GET", "/", nil)

		respond.Error(recorder, request, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
		assert.NotContains(t, recorder.Body.String(), "connection refused")
	})

	t.Run("not_found", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest("GET", "/", nil)

		respond.Error(recorder, request, apperr.NotFound("User"))

		assert.Equal(t, http.StatusNotFound, recorder.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, "404", body["status"])
	})

	t.Run("precondition_failed_carries_scim_type", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest("PUT", "/", nil)

		respond.Error(recorder, request, apperr.PreconditionFailed(`Version mismatch: resource is at W/"3"`))

		assert.Equal(t, http.StatusPreconditionFailed, recorder.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, "412", body["status"])
		assert.Equal(t, "preconditionFailed", body["scimType"])
	})
}
