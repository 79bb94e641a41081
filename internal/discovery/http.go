// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package discovery

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	requestutil "github.com/hiromu-dev/torii/internal/platform/request"
	"github.com/hiromu-dev/torii/internal/platform/respond"
	"github.com/hiromu-dev/torii/internal/scim/message"
	"github.com/hiromu-dev/torii/internal/scim/schema"
)

type Handler struct {
	baseURL string
}

func NewHandler(baseURL string) *Handler {
	return &Handler{baseURL: baseURL}
}

// RegisterRoutes mounts the discovery endpoints.
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/ServiceProviderConfig", handler.serviceProviderConfig)
	router.Get("/Schemas", handler.listSchemas)
	router.Get("/Schemas/{id}", handler.getSchema)
	router.Get("/ResourceTypes", handler.listResourceTypes)
	router.Get("/ResourceTypes/{id}", handler.getResourceType)
}

func (handler *Handler) serviceProviderConfig(writer http.ResponseWriter, request *http.Request) {
	ten, err := requestutil.RequiredTenant(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Scim(writer, http.StatusOK, serviceProviderConfig(handler.baseURL, ten.BasePath()))
}

func (handler *Handler) listSchemas(writer http.ResponseWriter, request *http.Request) {
	ten, err := requestutil.RequiredTenant(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	documents := allSchemas(handler.baseURL, ten.BasePath())
	respond.Scim(writer, http.StatusOK, message.NewListResponse(len(documents), 1, documents))
}

func (handler *Handler) getSchema(writer http.ResponseWriter, request *http.Request) {
	ten, err := requestutil.RequiredTenant(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	id := requestutil.ID(request, "id")
	for _, s := range []*schema.Schema{&schema.UserSchema, &schema.EnterpriseUserSchema, &schema.GroupSchema} {
		if strings.EqualFold(s.ID, id) {
			respond.Scim(writer, http.StatusOK, renderSchema(handler.baseURL, ten.BasePath(), s))
			return
		}
	}
	respond.Error(writer, request, apperr.NotFound("Schema"))
}

func (handler *Handler) listResourceTypes(writer http.ResponseWriter, request *http.Request) {
	ten, err := requestutil.RequiredTenant(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	documents := resourceTypes(handler.baseURL, ten.BasePath())
	respond.Scim(writer, http.StatusOK, message.NewListResponse(len(documents), 1, documents))
}

func (handler *Handler) getResourceType(writer http.ResponseWriter, request *http.Request) {
	ten, err := requestutil.RequiredTenant(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	id := requestutil.ID(request, "id")
	for _, document := range resourceTypes(handler.baseURL, ten.BasePath()) {
		if name, ok := document["id"].(string); ok && strings.EqualFold(name, id) {
			respond.Scim(writer, http.StatusOK, document)
			return
		}
	}
	respond.Error(writer, request, apperr.NotFound("ResourceType"))
}
