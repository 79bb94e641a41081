// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, SCIM protocol identifiers, and
cross-cutting keys that are shared between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - SCIM Protocol: Schema URNs, message URNs, media types, list bounds.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "torii-scim"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderIfMatch       = "If-Match"
	HeaderIfNoneMatch   = "If-None-Match"
	HeaderETag          = "ETag"
	HeaderLocation      = "Location"
)

// # SCIM Protocol

const (
	// MediaTypeSCIM is the media type for all SCIM request and response bodies.
	MediaTypeSCIM = "application/scim+json"

	// SchemaURNUser is the core User resource schema URN.
	SchemaURNUser = "urn:ietf:params:scim:schemas:core:2.0:User"

	// SchemaURNGroup is the core Group resource schema URN.
	SchemaURNGroup = "urn:ietf:params:scim:schemas:core:2.0:Group"

	// SchemaURNEnterpriseUser is the Enterprise User extension schema URN.
	SchemaURNEnterpriseUser = "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User"

	// MessageURNListResponse identifies SCIM list response payloads.
	MessageURNListResponse = "urn:ietf:params:scim:api:messages:2.0:ListResponse"

	// MessageURNPatchOp identifies SCIM PATCH request payloads.
	MessageURNPatchOp = "urn:ietf:params:scim:api:messages:2.0:PatchOp"

	// MessageURNError identifies SCIM error response payloads.
	MessageURNError = "urn:ietf:params:scim:api:messages:2.0:Error"

	// SchemaURNServiceProviderConfig identifies the service provider config resource.
	SchemaURNServiceProviderConfig = "urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"

	// SchemaURNResourceType identifies ResourceType discovery resources.
	SchemaURNResourceType = "urn:ietf:params:scim:schemas:core:2.0:ResourceType"

	// SchemaURNSchema identifies Schema discovery resources.
	SchemaURNSchema = "urn:ietf:params:scim:schemas:core:2.0:Schema"
)

// # List Bounds

const (
	// DefaultListCount is the page size when the client omits the count parameter.
	DefaultListCount = 100

	// MaxListCount is the upper bound for count to prevent system abuse.
	MaxListCount = 1000

	// DefaultStartIndex is the 1-based index of the first returned result.
	DefaultStartIndex = 1
)

// # Redis Prefixes (Cache Taxonomy)

const (
	// RedisPrefixVersion caches the current version counter of a resource,
	// keyed by tenant, table kind, and resource ID.
	RedisPrefixVersion = "scim:version:"
)
