// Package mapper converts between SCIM protocol representations and
// native storage records, driven by a resource type's attribute map.
package mapper

import (
	"fmt"
	"strings"

	"github.com/elimity-com/scim"
	"github.com/elimity-com/scim/optional"

	"github.com/visibuild/scimitar/internal/domain"
)

// externalIDPath is the protocol attribute handled outside the generic
// attribute bag by the protocol layer.
const externalIDPath = "externalid"

// FromResource applies a full-replace conversion of a protocol resource
// representation onto a record: every mapped attribute is written to its
// column, and mapped attributes absent from the payload are cleared.
// Unmapped protocol attributes are ignored per RFC 7644 §3.5.1.
func FromResource(rt *domain.ResourceType, rec *domain.Record, attributes scim.ResourceAttributes) {
	for _, column := range rt.Columns() {
		path := rt.AttributeFor(column)
		value, ok := lookupPath(attributes, path)
		if !ok {
			rec.Set(column, nil)
			continue
		}
		rec.Set(column, value)
	}
}

// ToResource serializes a record into its protocol representation,
// reconstructing nested sub-attributes from dotted mapping paths.
func ToResource(rt *domain.ResourceType, rec *domain.Record) scim.Resource {
	attributes := make(scim.ResourceAttributes)
	externalID := optional.String{}

	for _, column := range rt.Columns() {
		value := rec.Get(column)
		if value == nil {
			continue
		}

		path := rt.AttributeFor(column)
		if strings.ToLower(path) == externalIDPath {
			if s, ok := value.(string); ok && s != "" {
				externalID = optional.NewString(s)
			}
			continue
		}

		setPath(attributes, path, value)
	}

	resource := scim.Resource{
		ID:         rec.ID.String(),
		ExternalID: externalID,
		Attributes: attributes,
	}
	if !rec.CreatedAt.IsZero() {
		created := rec.CreatedAt
		modified := rec.UpdatedAt
		resource.Meta = scim.Meta{
			Created:      &created,
			LastModified: &modified,
		}
	}

	return resource
}

// Validate checks the record against the resource type's required
// columns, accumulating field errors tagged "required". It returns a
// ValidationError describing the first missing field, or nil.
func Validate(rt *domain.ResourceType, rec *domain.Record) error {
	var first *domain.ValidationError
	for _, column := range rt.Required {
		if present(rec.Get(column)) {
			continue
		}
		attr := rt.AttributeFor(column)
		if attr == "" {
			attr = column
		}
		rec.AddFieldError(attr, domain.TagRequired, fmt.Sprintf("%s is required", attr))
		if first == nil {
			first = domain.NewValidationError(attr, domain.TagRequired, fmt.Sprintf("%s is required", attr))
		}
	}
	if first != nil {
		return first
	}
	return nil
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

// lookupPath resolves a dotted attribute path within a nested protocol
// attribute bag. Attribute names compare case-insensitively.
func lookupPath(attributes map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = map[string]any(attributes)

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = lookupKey(m, part)
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func lookupKey(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	lower := strings.ToLower(key)
	for k, v := range m {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

// setPath writes a value into a nested attribute bag, creating
// intermediate complex attributes for dotted paths.
func setPath(attributes map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := attributes
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
