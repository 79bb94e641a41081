// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

// Package validate provides a chainable Validator that collects field-level
// failures before returning a single [apperr.AppError].
//
// # Architecture
//
// This package is used exclusively in the service layer — never in handlers
// or storage. Failures accumulate across the chain and surface as one SCIM
// invalidValue error whose detail lists every offending attribute, so
// provisioning clients see all problems in a single round trip.
package validate

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
)

var (
	// uuidRegex matches a UUIDv4 or UUIDv7 string.
	uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	// localeRegex matches RFC 5646 language tags ("en", "en-US", "zh-Hant-TW").
	localeRegex = regexp.MustCompile(`^[A-Za-z]{2,8}(-[A-Za-z0-9]{1,8})*$`)

	// ErrInvalidJSON is returned when a request body cannot be decoded.
	ErrInvalidJSON = apperr.BadRequest(apperr.ScimTypeInvalidSyntax, "Invalid JSON payload")
)

// Validator collects attribute-level validation failures via a fluent,
// chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every operation.
type Validator struct {
	failures []string
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(attribute, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(attribute, "is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(attribute, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(attribute, fmt.Sprintf("must be at most %d characters", max))
	}
	return v
}

// Email fails if the value is not a valid RFC 5322 email address.
func (v *Validator) Email(attribute, value string) *Validator {
	if _, err := mail.ParseAddress(value); err != nil {
		v.add(attribute, "must be a valid email address")
	}
	return v
}

// URL fails if the value is not an absolute http(s) URL.
func (v *Validator) URL(attribute, value string) *Validator {
	parsed, err := url.Parse(value)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		v.add(attribute, "must be a valid absolute URL")
	}
	return v
}

// Locale fails if the value is not an RFC 5646 language tag.
func (v *Validator) Locale(attribute, value string) *Validator {
	if !localeRegex.MatchString(value) {
		v.add(attribute, "must be a valid language tag")
	}
	return v
}

// UUID fails if the value is not a valid UUID string (case-insensitive).
func (v *Validator) UUID(attribute, value string) *Validator {
	if !uuidRegex.MatchString(strings.ToLower(value)) {
		v.add(attribute, "must be a valid UUID")
	}
	return v
}

// OneOf fails if the value is not in the allowed set, compared
// case-insensitively as SCIM canonical values are.
func (v *Validator) OneOf(attribute, value string, allowed ...string) *Validator {
	for _, candidate := range allowed {
		if strings.EqualFold(value, candidate) {
			return v
		}
	}
	v.add(attribute, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// Custom adds a failure with a custom message if the condition is true.
//
// # Example
//
//	v.Custom("members", len(primaries) > 1, "may declare at most one primary element")
func (v *Validator) Custom(attribute string, failed bool, message string) *Validator {
	if failed {
		v.add(attribute, message)
	}
	return v
}

// Err returns a SCIM invalidValue [apperr.AppError] if any rule failed, or
// nil if all rules passed.
//
// This is the only output method — call it at the end of the chain.
func (v *Validator) Err() error {
	if len(v.failures) == 0 {
		return nil
	}
	return apperr.BadRequest(apperr.ScimTypeInvalidValue, strings.Join(v.failures, "; "))
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.failures) > 0
}

// add records one attribute failure.
func (v *Validator) add(attribute, message string) {
	v.failures = append(v.failures, attribute+" "+message)
}
