// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/platform/ctxutil"
	"github.com/hiromu-dev/torii/internal/platform/respond"
	"github.com/hiromu-dev/torii/internal/platform/sec"
	"github.com/hiromu-dev/torii/internal/tenant"
)

// ResolveTenant looks up the {tenant} URL segment in the registry and
// injects the matching [*tenant.Tenant] into the request context.
//
// Unknown tenants return 404 without revealing which tenants exist.
func ResolveTenant(registry *tenant.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			name := chi.URLParam(request, "tenant")

			resolved := registry.Lookup(name)
			if resolved == nil {
				respond.Error(writer, request, apperr.NotFound("Tenant"))
				return
			}

			ctx := ctxutil.WithTenant(request.Context(), resolved)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// Authenticate enforces the resolved tenant's authentication settings.
//
// # Flow
//  1. Read the tenant from context (requires [ResolveTenant] upstream).
//  2. Dispatch on the tenant's auth type: bearer, basic, jwt, or anonymous.
//  3. Reject with 401 on missing or invalid credentials.
//
// All static credential comparisons are constant-time.
func Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			resolved := ctxutil.GetTenant(request.Context())
			if resolved == nil {
				respond.Error(writer, request, apperr.Internal(nil))
				return
			}

			switch resolved.Auth.Type {
			case tenant.AuthAnonymous:
				next.ServeHTTP(writer, request)
				return

			case tenant.AuthBearer:
				token, ok := bearerToken(request)
				if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(resolved.Auth.Token)) != 1 {
					respond.Error(writer, request, apperr.Unauthorized("Invalid or missing bearer token"))
					return
				}

			case tenant.AuthBasic:
				username, password, ok := request.BasicAuth()
				usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(resolved.Auth.Username))
				passwordMatch := subtle.ConstantTimeCompare([]byte(password), []byte(resolved.Auth.Password))
				if !ok || usernameMatch != 1 || passwordMatch != 1 {
					respond.Error(writer, request, apperr.Unauthorized("Invalid or missing basic credentials"))
					return
				}

			case tenant.AuthJWT:
				token, ok := bearerToken(request)
				if !ok {
					respond.Error(writer, request, apperr.Unauthorized("Missing bearer token"))
					return
				}
				if err := sec.VerifyTenantToken(token, resolved.Auth.Secret, resolved.Auth.Issuer, resolved.Auth.Audience); err != nil {
					respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
					return
				}

			default:
				respond.Error(writer, request, apperr.Unauthorized("Unsupported authentication scheme"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// bearerToken extracts the token from an 'Authorization: Bearer <token>' header.
func bearerToken(request *http.Request) (string, bool) {
	authHeader := request.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}

	return parts[1], true
}
