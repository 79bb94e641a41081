// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package patch applies SCIM 2.0 PATCH operations (RFC 7644 §3.5.2) to
resource documents.

Documents are map[string]any trees decoded from the case-preserved JSON
column. All attribute addressing is case-insensitive while the stored key
casing is left untouched.

Behaviors beyond the plain RFC text, matching what real identity providers
send in practice:

  - "remove" with a plain path and a value array removes only the matching
    elements of a multi-valued attribute (Azure AD style), using a layered
    matching strategy.
  - "replace" of a multi-valued attribute with [] or with [{"value":""}]
    (when the tenant opts in) clears the attribute.
  - Adding or removing an extension object keeps the top-level "schemas"
    array in sync with the URNs actually present.
  - At most one element of a multi-valued attribute keeps "primary": true
    after a write.
*/
package patch

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/scim/filter"
	"github.com/hiromu-dev/torii/internal/scim/message"
	"github.com/hiromu-dev/torii/internal/scim/path"
	"github.com/hiromu-dev/torii/internal/scim/schema"
)

// Applier applies PATCH operations for one resource type.
type Applier struct {
	resourceType string

	// supportReplaceEmptyValue enables the compatibility behavior where
	// replacing with [{"value":""}] clears the attribute.
	supportReplaceEmptyValue bool
}

// NewApplier constructs a patch applier.
func NewApplier(resourceType string, supportReplaceEmptyValue bool) *Applier {
	return &Applier{
		resourceType:             resourceType,
		supportReplaceEmptyValue: supportReplaceEmptyValue,
	}
}

// Apply executes the operations in order, mutating the document.
//
// The first failing operation aborts the whole PATCH; callers work on a
// copy and persist only on success.
func (a *Applier) Apply(document map[string]any, operations []message.PatchOperation) error {
	if len(operations) == 0 {
		return apperr.BadRequest(apperr.ScimTypeInvalidSyntax, "PATCH request contains no operations")
	}

	for _, operation := range operations {
		value, err := decodeValue(operation.Value)
		if err != nil {
			return err
		}

		switch strings.ToLower(operation.Op) {
		case "add":
			err = a.applyAdd(document, operation.Path, value)
		case "replace":
			err = a.applyReplace(document, operation.Path, value)
		case "remove":
			err = a.applyRemove(document, operation.Path, value)
		default:
			err = apperr.BadRequest(apperr.ScimTypeInvalidSyntax, "Invalid PATCH operation: "+operation.Op)
		}
		if err != nil {
			return err
		}
	}

	a.syncSchemas(document)
	return nil
}

// decodeValue unmarshals the raw operation value, nil when absent.
func decodeValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, apperr.BadRequest(apperr.ScimTypeInvalidValue, "Invalid PATCH operation value")
	}
	return value, nil
}

// # Add

func (a *Applier) applyAdd(document map[string]any, rawPath string, value any) error {
	if strings.TrimSpace(rawPath) == "" {
		return a.mergeTopLevel(document, value, false)
	}

	target, err := path.Parse(rawPath)
	if err != nil {
		return err
	}

	if target.HasValueFilter() {
		return a.updateMatchingElements(document, target, value, false)
	}

	container, key, err := a.resolveContainer(document, target, true)
	if err != nil {
		return err
	}
	if container == nil {
		return apperr.BadRequest(apperr.ScimTypeNoTarget, "PATCH path does not resolve to a target: "+rawPath)
	}

	// Bare extension URN: merge the object into the extension container.
	if key == "" {
		object, ok := value.(map[string]any)
		if !ok {
			return apperr.BadRequest(apperr.ScimTypeInvalidValue, "Extension value must be an object")
		}
		for k, v := range object {
			setKey(container, k, v)
		}
		return nil
	}

	if schema.IsMultiValued(a.resourceType, target.Attribute()) {
		a.appendElements(container, key, value)
		return nil
	}

	setKey(container, key, value)
	return nil
}

// mergeTopLevel handles add/replace without a path: the value object's
// entries each become their own operation target.
func (a *Applier) mergeTopLevel(document map[string]any, value any, replace bool) error {
	object, ok := value.(map[string]any)
	if !ok {
		return apperr.BadRequest(apperr.ScimTypeInvalidValue, "PATCH value must be an object when no path is given")
	}

	for key, entry := range object {
		if replace {
			if err := a.applyReplace(document, key, entry); err != nil {
				return err
			}
		} else {
			if err := a.applyAdd(document, key, entry); err != nil {
				return err
			}
		}
	}
	return nil
}

// appendElements appends to a multi-valued attribute, then re-enforces the
// single-primary rule.
func (a *Applier) appendElements(container map[string]any, key string, value any) {
	existing, _ := getKey(container, key).([]any)
	start := len(existing)

	switch typed := value.(type) {
	case []any:
		existing = append(existing, typed...)
	default:
		existing = append(existing, typed)
	}

	setKey(container, key, existing)

	appended := make([]int, 0, len(existing)-start)
	for i := start; i < len(existing); i++ {
		appended = append(appended, i)
	}
	enforceSinglePrimary(existing, appended)
}

// # Replace

func (a *Applier) applyReplace(document map[string]any, rawPath string, value any) error {
	if strings.TrimSpace(rawPath) == "" {
		return a.mergeTopLevel(document, value, true)
	}

	target, err := path.Parse(rawPath)
	if err != nil {
		return err
	}

	if target.HasValueFilter() {
		return a.updateMatchingElements(document, target, value, true)
	}

	container, key, err := a.resolveContainer(document, target, true)
	if err != nil {
		return err
	}
	if container == nil {
		return apperr.BadRequest(apperr.ScimTypeNoTarget, "PATCH path does not resolve to a target: "+rawPath)
	}

	if key == "" {
		object, ok := value.(map[string]any)
		if !ok {
			return apperr.BadRequest(apperr.ScimTypeInvalidValue, "Extension value must be an object")
		}
		replaceExtension(container, object)
		return nil
	}

	fullAttr := target.Attribute()
	if schema.IsMultiValued(a.resourceType, fullAttr) {
		return a.replaceMultiValued(container, key, value)
	}

	setKey(container, key, value)
	return nil
}

// replaceExtension swaps the extension object's contents in place.
func replaceExtension(container map[string]any, object map[string]any) {
	for key := range container {
		delete(container, key)
	}
	for key, value := range object {
		container[key] = value
	}
}

// replaceMultiValued replaces a whole multi-valued attribute, applying the
// empty-array and empty-value clearing rules.
func (a *Applier) replaceMultiValued(container map[string]any, key string, value any) error {
	array, isArray := value.([]any)
	if !isArray {
		// A single object replaces the array with one element.
		setKey(container, key, []any{value})
		return nil
	}

	if len(array) == 0 {
		deleteKey(container, key)
		return nil
	}

	if a.supportReplaceEmptyValue && isEmptyValueSentinel(array) {
		deleteKey(container, key)
		return nil
	}

	setKey(container, key, array)
	enforceSinglePrimary(array, nil)
	return nil
}

// isEmptyValueSentinel recognizes the [{"value":""}] clearing idiom.
func isEmptyValueSentinel(array []any) bool {
	if len(array) != 1 {
		return false
	}
	object, ok := array[0].(map[string]any)
	if !ok || len(object) != 1 {
		return false
	}
	value, found := getKeyOK(object, "value")
	if !found {
		return false
	}
	str, isString := value.(string)
	return isString && str == ""
}

// updateMatchingElements applies add/replace through a valuePath.
//
// Replace with no matching element fails with noTarget; add with no match
// appends a new element synthesized from the filter's equality terms.
func (a *Applier) updateMatchingElements(document map[string]any, target *path.Path, value any, replace bool) error {
	container, key, err := a.resolveContainer(document, target, true)
	if err != nil {
		return err
	}
	if container == nil || key == "" {
		return apperr.BadRequest(apperr.ScimTypeNoTarget, "PATCH path does not resolve to a target: "+target.String())
	}

	array, _ := getKey(container, key).([]any)
	var written []int

	for i, element := range array {
		object, ok := element.(map[string]any)
		if !ok {
			continue
		}
		if !filter.Matches(a.resourceType, object, target.ValueFilter) {
			continue
		}
		written = append(written, i)

		if target.SubAttribute != "" {
			setKey(object, target.SubAttribute, value)
			continue
		}

		valueObject, ok := value.(map[string]any)
		if !ok {
			return apperr.BadRequest(apperr.ScimTypeInvalidValue, "Element value must be an object")
		}
		for k, v := range valueObject {
			setKey(object, k, v)
		}
	}

	if len(written) == 0 {
		if replace {
			return apperr.BadRequest(apperr.ScimTypeNoTarget, "No element matches the value filter: "+target.String())
		}

		// Add: synthesize a new element from the filter plus the value.
		element := elementFromFilter(target.ValueFilter)
		if target.SubAttribute != "" {
			setKey(element, target.SubAttribute, value)
		} else if valueObject, ok := value.(map[string]any); ok {
			for k, v := range valueObject {
				setKey(element, k, v)
			}
		} else {
			return apperr.BadRequest(apperr.ScimTypeInvalidValue, "Element value must be an object")
		}
		written = append(written, len(array))
		array = append(array, element)
	}

	setKey(container, key, array)
	enforceSinglePrimary(array, written)
	return nil
}

// elementFromFilter seeds a new element with the equality terms of a value
// filter, so `emails[type eq "work"].value` creates {"type": "work", ...}.
func elementFromFilter(expr filter.Expression) map[string]any {
	element := make(map[string]any)
	collectEqualityTerms(expr, element)
	return element
}

func collectEqualityTerms(expr filter.Expression, into map[string]any) {
	switch node := expr.(type) {
	case *filter.Comparison:
		if node.Operator == filter.OpEq {
			into[node.Path] = node.Value
		}
	case *filter.Logical:
		if node.Operator == filter.OpAnd {
			collectEqualityTerms(node.Left, into)
			collectEqualityTerms(node.Right, into)
		}
	}
}

// # Remove

func (a *Applier) applyRemove(document map[string]any, rawPath string, value any) error {
	if strings.TrimSpace(rawPath) == "" {
		return apperr.BadRequest(apperr.ScimTypeNoTarget, "PATCH remove requires a path")
	}

	target, err := path.Parse(rawPath)
	if err != nil {
		return err
	}

	container, key, err := a.resolveContainer(document, target, false)
	if err != nil {
		return err
	}
	if container == nil {
		// Removing from an absent container is a no-op.
		return nil
	}

	if key == "" {
		// Bare extension URN: drop the whole extension object.
		deleteKey(document, target.URN)
		return nil
	}

	if target.HasValueFilter() {
		a.removeMatchingElements(container, key, target)
		return nil
	}

	fullAttr := target.Attribute()
	if value != nil && schema.IsMultiValued(a.resourceType, fullAttr) {
		a.removeByValue(container, key, value)
		return nil
	}

	deleteKey(container, key)
	return nil
}

// removeMatchingElements removes valuePath matches, or clears a
// sub-attribute of the matches when one is named.
func (a *Applier) removeMatchingElements(container map[string]any, key string, target *path.Path) {
	array, ok := getKey(container, key).([]any)
	if !ok {
		return
	}

	if target.SubAttribute != "" {
		for _, element := range array {
			if object, ok := element.(map[string]any); ok &&
				filter.Matches(a.resourceType, object, target.ValueFilter) {
				deleteKey(object, target.SubAttribute)
			}
		}
		setKey(container, key, array)
		return
	}

	kept := array[:0]
	for _, element := range array {
		object, isObject := element.(map[string]any)
		if isObject && filter.Matches(a.resourceType, object, target.ValueFilter) {
			continue
		}
		kept = append(kept, element)
	}

	if len(kept) == 0 {
		deleteKey(container, key)
		return
	}
	setKey(container, key, kept)
}

// removeByValue removes the elements selected by the operation's value
// (one criterion object or an array of them).
func (a *Applier) removeByValue(container map[string]any, key string, value any) {
	array, ok := getKey(container, key).([]any)
	if !ok {
		return
	}

	var criteria []map[string]any
	switch typed := value.(type) {
	case []any:
		for _, item := range typed {
			if object, isObject := item.(map[string]any); isObject {
				criteria = append(criteria, object)
			}
		}
	case map[string]any:
		criteria = append(criteria, typed)
	}
	if len(criteria) == 0 {
		return
	}

	kept := array[:0]
	for _, element := range array {
		remove := false
		for _, criterion := range criteria {
			if matchesCriterion(element, criterion) {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, element)
		}
	}

	if len(kept) == 0 {
		deleteKey(container, key)
		return
	}
	setKey(container, key, kept)
}

// matchesCriterion decides whether an element is selected for removal.
//
// Strategies, in order:
//  1. The criterion names "value": match on that field alone.
//  2. The criterion names only "type": match on type alone.
//  3. The criterion names other fields: all of them must match.
//  4. No usable fields: fall back to deep equality.
func matchesCriterion(element any, criterion map[string]any) bool {
	object, isObject := element.(map[string]any)
	if !isObject {
		return reflect.DeepEqual(element, criterion)
	}

	if want, ok := getKeyOK(criterion, "value"); ok {
		have, found := getKeyOK(object, "value")
		return found && looseEqual(have, want)
	}

	if len(criterion) == 1 {
		if want, ok := getKeyOK(criterion, "type"); ok {
			have, found := getKeyOK(object, "type")
			return found && looseEqual(have, want)
		}
	}

	if len(criterion) > 0 {
		for key, want := range criterion {
			have, found := getKeyOK(object, key)
			if !found || !looseEqual(have, want) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(element, criterion)
}

// looseEqual compares scalars with case-insensitive strings.
func looseEqual(a, b any) bool {
	aStr, aOK := a.(string)
	bStr, bOK := b.(string)
	if aOK && bOK {
		return strings.EqualFold(aStr, bStr)
	}
	return reflect.DeepEqual(a, b)
}

// # Shared Mechanics

// resolveContainer walks the path down to the map owning the final segment.
//
// It returns the owning map and the final key. For bare-URN paths the
// extension object itself is returned with an empty key. A nil container
// means the path could not be resolved (and create was false).
func (a *Applier) resolveContainer(document map[string]any, target *path.Path, create bool) (map[string]any, string, error) {
	scope := document

	if target.URN != "" {
		extension, ok := getKey(document, target.URN).(map[string]any)
		if !ok {
			if !create {
				return nil, "", nil
			}
			extension = make(map[string]any)
			setKey(document, target.URN, extension)
		}
		scope = extension
	}

	if len(target.Segments) == 0 {
		return scope, "", nil
	}

	// Intermediate segments must be single-valued complex attributes.
	for _, segment := range target.Segments[:len(target.Segments)-1] {
		child, ok := getKey(scope, segment).(map[string]any)
		if !ok {
			if existing, found := getKeyOK(scope, segment); found && existing != nil {
				return nil, "", apperr.BadRequest(apperr.ScimTypeInvalidPath,
					"Path segment does not address a complex attribute: "+segment)
			}
			if !create {
				return nil, "", nil
			}
			child = make(map[string]any)
			setKey(scope, segment, child)
		}
		scope = child
	}

	return scope, target.Segments[len(target.Segments)-1], nil
}

// enforceSinglePrimary keeps at most one primary=true element after a write.
//
// writtenIndexes marks the elements the operation touched; the first primary
// among them wins and demotes any pre-existing primary. A nil writtenIndexes
// treats the whole array as newly written, so the first primary in array
// order is kept.
func enforceSinglePrimary(array []any, writtenIndexes []int) {
	keep := -1
	for _, i := range writtenIndexes {
		if i < len(array) && isPrimary(array[i]) {
			keep = i
			break
		}
	}
	if keep < 0 {
		keep = firstPrimary(array)
	}
	if keep < 0 {
		return
	}

	for i, element := range array {
		if i == keep {
			continue
		}
		if object, ok := element.(map[string]any); ok {
			if _, found := getKeyOK(object, "primary"); found {
				setKey(object, "primary", false)
			}
		}
	}
}

// firstPrimary returns the index of the first primary=true element, or -1.
func firstPrimary(array []any) int {
	for i, element := range array {
		if isPrimary(element) {
			return i
		}
	}
	return -1
}

func isPrimary(element any) bool {
	object, ok := element.(map[string]any)
	if !ok {
		return false
	}
	primary, _ := getKey(object, "primary").(bool)
	return primary
}

// syncSchemas reconciles the top-level schemas array with the extension
// URNs actually present as document keys.
func (a *Applier) syncSchemas(document map[string]any) {
	baseURN := schema.URNFor(a.resourceType)
	if baseURN == "" {
		return
	}

	urns := []string{}
	if existing, ok := getKey(document, "schemas").([]any); ok {
		for _, entry := range existing {
			if str, isString := entry.(string); isString {
				urns = append(urns, str)
			}
		}
	}
	if len(urns) == 0 {
		urns = append(urns, baseURN)
	}

	// Drop URNs whose extension object disappeared; keep the base URN.
	kept := urns[:0]
	for _, urn := range urns {
		if strings.EqualFold(urn, baseURN) {
			kept = append(kept, urn)
			continue
		}
		if _, found := getKeyOK(document, urn); found {
			kept = append(kept, urn)
		}
	}
	urns = kept

	// Add URNs for extension objects present but unlisted.
	for key := range document {
		if !strings.HasPrefix(strings.ToLower(key), "urn:") {
			continue
		}
		listed := false
		for _, urn := range urns {
			if strings.EqualFold(urn, key) {
				listed = true
				break
			}
		}
		if !listed {
			urns = append(urns, key)
		}
	}

	schemas := make([]any, len(urns))
	for i, urn := range urns {
		schemas[i] = urn
	}
	setKey(document, "schemas", schemas)
}

// # Case-insensitive Map Access

// getKey returns the value stored under a case-insensitive key, or nil.
func getKey(object map[string]any, name string) any {
	value, _ := getKeyOK(object, name)
	return value
}

// getKeyOK is getKey with an existence report.
func getKeyOK(object map[string]any, name string) (any, bool) {
	if value, ok := object[name]; ok {
		return value, true
	}
	for key, value := range object {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}

// setKey writes under the existing key casing when present, else under the
// given name.
func setKey(object map[string]any, name string, value any) {
	if _, ok := object[name]; ok {
		object[name] = value
		return
	}
	for key := range object {
		if strings.EqualFold(key, name) {
			object[key] = value
			return
		}
	}
	object[name] = value
}

// deleteKey removes a case-insensitive key.
func deleteKey(object map[string]any, name string) {
	if _, ok := object[name]; ok {
		delete(object, name)
		return
	}
	for key := range object {
		if strings.EqualFold(key, name) {
			delete(object, key)
			return
		}
	}
}
