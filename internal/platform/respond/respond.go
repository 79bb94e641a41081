// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

// Package respond provides HTTP response helpers used by all API handlers.
//
// # Architecture
//
// This package centralizes the presentation logic for HTTP responses.
// All SCIM payloads (resources, list responses, errors) are written with the
// application/scim+json media type and the exact body shapes RFC 7644
// prescribes, so every provisioning client can parse responses robustly.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/platform/constants"
	"github.com/hiromu-dev/torii/internal/platform/ctxkey"
)

// ScimError is the RFC 7644 §3.12 error body.
type ScimError struct {
	Schemas  []string `json:"schemas"`
	Status   string   `json:"status"`
	ScimType string   `json:"scimType,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}

// JSON writes a plain JSON response with the given status code.
// Used only by non-SCIM endpoints (health probes).
func JSON(writer http.ResponseWriter, statusCode int, payload any) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(payload)
}

// Scim writes a SCIM response body with the given status code.
func Scim(writer http.ResponseWriter, statusCode int, payload any) {
	writer.Header().Set("Content-Type", constants.MediaTypeSCIM)
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(payload)
}

// ScimResource writes a single SCIM resource with its ETag and optional Location.
func ScimResource(writer http.ResponseWriter, statusCode int, etag, location string, payload any) {
	if etag != "" {
		writer.Header().Set(constants.HeaderETag, etag)
	}
	if location != "" {
		writer.Header().Set(constants.HeaderLocation, location)
	}
	Scim(writer, statusCode, payload)
}

// NoContent writes a 204 No Content response.
func NoContent(writer http.ResponseWriter) {
	writer.WriteHeader(http.StatusNoContent)
}

// NotModified writes a 304 Not Modified response carrying the current ETag.
func NotModified(writer http.ResponseWriter, etag string) {
	if etag != "" {
		writer.Header().Set(constants.HeaderETag, etag)
	}
	writer.WriteHeader(http.StatusNotModified)
}

// Error converts any Go error into a standardized SCIM error response.
func Error(writer http.ResponseWriter, request *http.Request, err error) {
	var appError *apperr.AppError
	if !errors.As(err, &appError) {
		// Unexpected internal error: log full details but hide them from the client for security.
		logger := getLoggerFromContext(request)
		logger.ErrorContext(request.Context(), "unhandled_error_swallowed",
			slog.String("error", err.Error()),
			slog.String("request_id", getRequestIDFromContext(request)),
		)
		appError = apperr.Internal(err)
	}

	// Always log 5xx errors as they indicate server-side issues.
	if appError.HTTPStatus >= 500 {
		logger := getLoggerFromContext(request)
		logger.ErrorContext(request.Context(), "api_server_error",
			slog.String("code", appError.Code),
			slog.String("request_id", getRequestIDFromContext(request)),
			slog.Any("cause", appError.Cause),
		)
	}

	Scim(writer, appError.HTTPStatus, ScimError{
		Schemas:  []string{constants.MessageURNError},
		Status:   strconv.Itoa(appError.HTTPStatus),
		ScimType: appError.ScimType,
		Detail:   appError.Message,
	})
}

// getLoggerFromContext extracts the per-request logger.
func getLoggerFromContext(request *http.Request) *slog.Logger {
	if logger, ok := request.Context().Value(ctxkey.KeyLogger).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// getRequestIDFromContext extracts the X-Request-ID for log correlation.
func getRequestIDFromContext(request *http.Request) string {
	if id, ok := request.Context().Value(ctxkey.KeyRequestID).(string); ok {
		return id
	}
	return ""
}
