// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package resource

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/platform/constants"
	requestutil "github.com/hiromu-dev/torii/internal/platform/request"
	"github.com/hiromu-dev/torii/internal/platform/respond"
	"github.com/hiromu-dev/torii/internal/scim/message"
	"github.com/hiromu-dev/torii/internal/scim/projection"
	"github.com/hiromu-dev/torii/internal/scim/schema"
	"github.com/hiromu-dev/torii/internal/tenant"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the /Users and /Groups collections.
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/Users", func(r chi.Router) {
		handler.resourceRoutes(r, schema.ResourceUser)
	})
	router.Route("/Groups", func(r chi.Router) {
		handler.resourceRoutes(r, schema.ResourceGroup)
	})
}

func (handler *Handler) resourceRoutes(router chi.Router, resourceType string) {
	router.Get("/", handler.list(resourceType))
	router.Post("/", handler.create(resourceType))
	router.Get("/{id}", handler.get(resourceType))
	router.Put("/{id}", handler.replace(resourceType))
	router.Patch("/{id}", handler.patch(resourceType))
	router.Delete("/{id}", handler.remove(resourceType))
}

// # Handlers

func (handler *Handler) create(resourceType string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		ten, err := requestutil.RequiredTenant(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		var document map[string]any
		if err := requestutil.DecodeJSON(request, &document); err != nil {
			respond.Error(writer, request, err)
			return
		}

		stored, err := handler.service.Create(request.Context(), ten, resourceType, document)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		payload := projectDocument(request, ten, resourceType, stored.Document)
		respond.ScimResource(writer, http.StatusCreated, stored.ETag(), stored.Location(), payload)
	}
}

func (handler *Handler) get(resourceType string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		ten, err := requestutil.RequiredTenant(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		id := requestutil.ID(request, "id")
		ifNoneMatch := request.Header.Get(constants.HeaderIfNoneMatch)

		stored, notModified, err := handler.service.Get(request.Context(), ten, resourceType, id, ifNoneMatch)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		if notModified {
			respond.NotModified(writer, stored.ETag())
			return
		}

		payload := projectDocument(request, ten, resourceType, stored.Document)
		respond.ScimResource(writer, http.StatusOK, stored.ETag(), "", payload)
	}
}

func (handler *Handler) replace(resourceType string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		ten, err := requestutil.RequiredTenant(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		var document map[string]any
		if err := requestutil.DecodeJSON(request, &document); err != nil {
			respond.Error(writer, request, err)
			return
		}

		id := requestutil.ID(request, "id")
		ifMatch := request.Header.Get(constants.HeaderIfMatch)

		stored, err := handler.service.Replace(request.Context(), ten, resourceType, id, document, ifMatch)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		payload := projectDocument(request, ten, resourceType, stored.Document)
		respond.ScimResource(writer, http.StatusOK, stored.ETag(), "", payload)
	}
}

func (handler *Handler) patch(resourceType string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		ten, err := requestutil.RequiredTenant(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		var patchOp message.PatchOp
		if err := requestutil.DecodeJSON(request, &patchOp); err != nil {
			respond.Error(writer, request, err)
			return
		}
		if !hasSchema(patchOp.Schemas, constants.MessageURNPatchOp) {
			respond.Error(writer, request, apperr.BadRequest(apperr.ScimTypeInvalidSyntax,
				"PATCH body must declare the PatchOp schema"))
			return
		}

		id := requestutil.ID(request, "id")
		ifMatch := request.Header.Get(constants.HeaderIfMatch)

		stored, err := handler.service.Patch(request.Context(), ten, resourceType, id, patchOp.Operations, ifMatch)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		payload := projectDocument(request, ten, resourceType, stored.Document)
		respond.ScimResource(writer, http.StatusOK, stored.ETag(), "", payload)
	}
}

func (handler *Handler) remove(resourceType string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		ten, err := requestutil.RequiredTenant(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		id := requestutil.ID(request, "id")
		ifMatch := request.Header.Get(constants.HeaderIfMatch)

		if err := handler.service.Delete(request.Context(), ten, resourceType, id, ifMatch); err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.NoContent(writer)
	}
}

func (handler *Handler) list(resourceType string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		ten, err := requestutil.RequiredTenant(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		query, err := parseListQuery(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		outcome, err := handler.service.List(request.Context(), ten, resourceType, query)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		resources := make([]map[string]any, 0, len(outcome.Documents))
		for _, document := range outcome.Documents {
			resources = append(resources, projectDocument(request, ten, resourceType, document))
		}

		respond.Scim(writer, http.StatusOK,
			message.NewListResponse(outcome.TotalResults, outcome.StartIndex, resources))
	}
}

// # Query Parsing

// parseListQuery reads the RFC 7644 §3.4.2 query parameters with the
// server's pagination defaults applied.
func parseListQuery(request *http.Request) (ListQuery, error) {
	startIndex, err := requestutil.QueryInt(request, "startIndex", constants.DefaultStartIndex)
	if err != nil {
		return ListQuery{}, err
	}
	if startIndex < 1 {
		startIndex = 1
	}

	count, err := requestutil.QueryInt(request, "count", constants.DefaultListCount)
	if err != nil {
		return ListQuery{}, err
	}
	if count < 0 {
		count = 0
	}
	if count > constants.MaxListCount {
		count = constants.MaxListCount
	}

	values := request.URL.Query()
	return ListQuery{
		Filter:     values.Get("filter"),
		SortBy:     values.Get("sortBy"),
		SortOrder:  values.Get("sortOrder"),
		StartIndex: startIndex,
		Count:      count,
	}, nil
}

// projectDocument applies attribute projection and the tenant's empty
// collection visibility to an outgoing resource.
func projectDocument(request *http.Request, ten *tenant.Tenant, resourceType string, document map[string]any) map[string]any {
	options := projection.Options{
		Attributes:            requestutil.QueryCSV(request, "attributes"),
		ExcludedAttributes:    requestutil.QueryCSV(request, "excludedAttributes"),
		ShowEmptyUserGroups:   ten.IncludeUserGroups,
		ShowEmptyGroupMembers: ten.ShowEmptyGroupsMembers,
	}
	return projection.Apply(canonicalType(resourceType), document, options)
}

// hasSchema reports whether a schemas array names the URN, case-insensitively.
func hasSchema(schemas []string, urn string) bool {
	for _, candidate := range schemas {
		if strings.EqualFold(candidate, urn) {
			return true
		}
	}
	return false
}
