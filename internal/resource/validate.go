// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package resource

import (
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	"github.com/hiromu-dev/torii/internal/platform/validate"
	"github.com/hiromu-dev/torii/internal/scim/schema"
)

// utcOffsetPattern matches fixed UTC offsets like "+09:00" or "-05:30",
// accepted alongside IANA zone names.
var utcOffsetPattern = regexp.MustCompile(`^[+-]\d{2}:\d{2}$`)

// validateDocument dispatches to the per-type validation rules.
func validateDocument(resourceType string, document map[string]any) error {
	if strings.EqualFold(resourceType, schema.ResourceGroup) {
		return validateGroup(document)
	}
	return validateUser(document)
}

// validateUser enforces the User schema constraints a client payload must
// satisfy before it reaches storage.
func validateUser(document map[string]any) error {
	validator := &validate.Validator{}

	validator.Required("userName", stringAttr(document, "userName")).
		MaxLen("userName", stringAttr(document, "userName"), 256)

	if profileURL := stringAttr(document, "profileUrl"); profileURL != "" {
		validator.URL("profileUrl", profileURL)
	}
	if locale := stringAttr(document, "locale"); locale != "" {
		validator.Locale("locale", locale)
	}
	if language := stringAttr(document, "preferredLanguage"); language != "" {
		validator.Locale("preferredLanguage", language)
	}
	if timezone := stringAttr(document, "timezone"); timezone != "" && !utcOffsetPattern.MatchString(timezone) {
		_, err := time.LoadLocation(timezone)
		validator.Custom("timezone", err != nil, "must be an IANA time zone name or a UTC offset")
	}

	validateElements(validator, document, "emails", func(attribute string, element map[string]any) {
		if value := stringAttr(element, "value"); value != "" {
			validator.Email(attribute+".value", value)
		}
	})
	validateElements(validator, document, "photos", func(attribute string, element map[string]any) {
		if value := stringAttr(element, "value"); value != "" {
			validator.URL(attribute+".value", value)
		}
	})
	validateElements(validator, document, "x509Certificates", func(attribute string, element map[string]any) {
		if value := stringAttr(element, "value"); value != "" {
			_, err := base64.StdEncoding.DecodeString(value)
			validator.Custom(attribute+".value", err != nil || len(value) < 100,
				"must be base64-encoded DER of at least 100 characters")
		}
	})

	for _, attribute := range []string{
		"emails", "phoneNumbers", "ims", "photos", "addresses",
		"entitlements", "roles", "x509Certificates",
	} {
		dedupePrimary(document, attribute)
	}

	validateEnterpriseExtension(validator, document)

	return validator.Err()
}

// validateEnterpriseExtension checks the enterprise extension object when present.
func validateEnterpriseExtension(validator *validate.Validator, document map[string]any) {
	for key, value := range document {
		if !strings.HasPrefix(strings.ToLower(key), "urn:") {
			continue
		}
		extension, ok := value.(map[string]any)
		if !ok {
			validator.Custom(key, true, "must be a complex object")
			continue
		}
		if manager, ok := lookupAttr(extension, "manager"); ok && manager != nil {
			managerObject, isObject := manager.(map[string]any)
			if !isObject {
				validator.Custom(key+":manager", true, "must be a complex object")
				continue
			}
			validator.Required(key+":manager.value", stringAttr(managerObject, "value"))
		}
	}
}

// validateGroup enforces the Group schema constraints.
func validateGroup(document map[string]any) error {
	validator := &validate.Validator{}

	validator.Required("displayName", stringAttr(document, "displayName")).
		MaxLen("displayName", stringAttr(document, "displayName"), 256)

	validateElements(validator, document, "members", func(attribute string, element map[string]any) {
		validator.Required(attribute+".value", stringAttr(element, "value"))
		if memberType := stringAttr(element, "type"); memberType != "" {
			validator.OneOf(attribute+".type", memberType, "User", "Group")
		}
	})

	return validator.Err()
}

// validateElements applies a check to each complex element of a
// multi-valued attribute, rejecting non-object elements.
func validateElements(validator *validate.Validator, document map[string]any, attribute string, check func(string, map[string]any)) {
	value, ok := lookupAttr(document, attribute)
	if !ok || value == nil {
		return
	}

	array, isArray := value.([]any)
	if !isArray {
		validator.Custom(attribute, true, "must be an array")
		return
	}

	for _, item := range array {
		element, isObject := item.(map[string]any)
		if !isObject {
			validator.Custom(attribute, true, "elements must be complex objects")
			return
		}
		check(attribute, element)
	}
}

// dedupePrimary clears primary on all but the first element declaring it.
// Payloads carrying several primaries are accepted; the first one wins.
func dedupePrimary(document map[string]any, attribute string) {
	value, ok := lookupAttr(document, attribute)
	if !ok {
		return
	}
	array, isArray := value.([]any)
	if !isArray {
		return
	}

	kept := false
	for _, item := range array {
		element, isObject := item.(map[string]any)
		if !isObject {
			continue
		}
		primary, ok := lookupAttr(element, "primary")
		if !ok {
			continue
		}
		flag, isBool := primary.(bool)
		if !isBool || !flag {
			continue
		}
		if kept {
			setAttr(element, "primary", false)
		}
		kept = true
	}
}
