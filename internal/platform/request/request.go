// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/platform/ctxutil"
	"github.com/hiromu-dev/torii/internal/platform/validate"
	"github.com/hiromu-dev/torii/internal/tenant"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: any (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target any) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
ID retrieves a named URL parameter (resource ID) from the request.
*/
func ID(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Tenant extracts the resolved tenant from the request context.

Returns nil if the request was not routed through tenant resolution.
*/
func Tenant(request *http.Request) *tenant.Tenant {
	return ctxutil.GetTenant(request.Context())
}

/*
RequiredTenant ensures the request carries a resolved tenant.

Returns:
  - *tenant.Tenant: The resolved tenant
  - error: apperr.NotFound if no tenant was resolved
*/
func RequiredTenant(request *http.Request) (*tenant.Tenant, error) {
	ten := ctxutil.GetTenant(request.Context())
	if ten == nil {
		return nil, apperr.NotFound("Tenant")
	}
	return ten, nil
}

/*
QueryInt parses an integer query parameter, returning fallback when the
parameter is absent. A present but malformed value is a SCIM invalidValue
error.
*/
func QueryInt(request *http.Request, name string, fallback int) (int, error) {
	raw := request.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.BadRequest(apperr.ScimTypeInvalidValue, "Invalid "+name+" value: "+raw)
	}
	return value, nil
}

/*
QueryCSV splits a comma-separated query parameter into trimmed values.
An absent parameter yields nil.
*/
func QueryCSV(request *http.Request, name string) []string {
	raw := request.URL.Query().Get(name)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
