// Package resourcetypes declares the built-in SCIM resource types: their
// storage registrations and the protocol schemas served for them.
package resourcetypes

import (
	"github.com/visibuild/scimitar/internal/domain"
)

// Table names backing the built-in resource types.
const (
	UserTable  = "scim_users"
	GroupTable = "scim_groups"
)

// User returns the storage registration of the core User resource type.
func User() *domain.ResourceType {
	return &domain.ResourceType{
		Name:     "User",
		Endpoint: "/Users",
		Table:    UserTable,
		Attributes: domain.AttributeMap{
			"userName":        "user_name",
			"externalId":      "external_id",
			"name.givenName":  "given_name",
			"name.familyName": "family_name",
			"displayName":     "display_name",
			"emails":          "emails",
			"active":          "active",
			"locale":          "locale",
			"timezone":        "timezone",
		},
		Required:    []string{"user_name"},
		Unique:      map[string]string{"user_name": "userName"},
		JSONColumns: []string{"emails"},
	}
}

// Group returns the storage registration of the core Group resource type.
func Group() *domain.ResourceType {
	return &domain.ResourceType{
		Name:     "Group",
		Endpoint: "/Groups",
		Table:    GroupTable,
		Attributes: domain.AttributeMap{
			"displayName": "display_name",
			"externalId":  "external_id",
			"members":     "members",
		},
		Required:    []string{"display_name"},
		Unique:      map[string]string{"display_name": "displayName"},
		JSONColumns: []string{"members"},
	}
}

// Register registers the built-in resource types with the registry.
func Register(registry *domain.Registry) error {
	for _, rt := range []*domain.ResourceType{User(), Group()} {
		if err := registry.Register(rt); err != nil {
			return err
		}
	}
	return nil
}
