// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package ctxutil_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hiromu-dev/torii/internal/platform/ctxutil"
	"github.com/hiromu-dev/torii/internal/tenant"
)

/*
TestContext_RequestID verifies that Request IDs can be injected and retrieved.
*/
func TestContext_RequestID(t *testing.T) {
	ctx := context.Background()
	requestID := "test-request-id"

	// 1. Initially should be empty
	assert.Empty(t, ctxutil.GetRequestID(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithRequestID(ctx, requestID)
	assert.Equal(t, requestID, ctxutil.GetRequestID(ctx))
}

/*
TestContext_Logger verifies that a custom logger can be stored in context.
*/
func TestContext_Logger(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 1. Initially should return the default logger
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithLogger(ctx, logger)
	assert.Equal(t, logger, ctxutil.GetLogger(ctx))
}

/*
TestContext_Tenant verifies that a resolved tenant can be stored in context.
*/
func TestContext_Tenant(t *testing.T) {
	ctx := context.Background()
	resolved := &tenant.Tenant{
		ID:   7,
		Name: "acme",
	}

	// 1. Initially should be nil
	assert.Nil(t, ctxutil.GetTenant(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithTenant(ctx, resolved)
	retrieved := ctxutil.GetTenant(ctx)

	assert.NotNil(t, retrieved)
	assert.Equal(t, 7, retrieved.ID)
	assert.Equal(t, "acme", retrieved.Name)
}
