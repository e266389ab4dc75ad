package mapper

import (
	"testing"
	"time"

	"github.com/elimity-com/scim"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visibuild/scimitar/internal/domain"
)

func testType(t *testing.T) *domain.ResourceType {
	t.Helper()

	rt := &domain.ResourceType{
		Name:     "User",
		Endpoint: "/Users",
		Table:    "scim_users",
		Attributes: domain.AttributeMap{
			"userName":        "user_name",
			"externalId":      "external_id",
			"displayName":     "display_name",
			"name.givenName":  "given_name",
			"name.familyName": "family_name",
			"emails":          "emails",
			"active":          "active",
		},
		Required:    []string{"user_name"},
		Unique:      map[string]string{"user_name": "userName"},
		JSONColumns: []string{"emails"},
	}

	registry := domain.NewRegistry()
	require.NoError(t, registry.Register(rt))

	return rt
}

func TestFromResource(t *testing.T) {
	rt := testType(t)
	rec := domain.NewRecord()

	FromResource(rt, rec, scim.ResourceAttributes{
		"userName": "jbartlet",
		"name": map[string]any{
			"givenName":  "Jed",
			"familyName": "Bartlet",
		},
		"active": true,
		"emails": []any{
			map[string]any{"value": "jed@example.com", "primary": true},
		},
		"nickName": "POTUS", // unmapped, ignored
	})

	assert.Equal(t, "jbartlet", rec.Get("user_name"))
	assert.Equal(t, "Jed", rec.Get("given_name"))
	assert.Equal(t, "Bartlet", rec.Get("family_name"))
	assert.Equal(t, true, rec.Get("active"))
	assert.NotNil(t, rec.Get("emails"))
	assert.Nil(t, rec.Get("display_name"))
}

func TestFromResourceClearsAbsentAttributes(t *testing.T) {
	rt := testType(t)
	rec := domain.NewRecord()
	rec.Set("user_name", "jbartlet")
	rec.Set("display_name", "President Bartlet")

	FromResource(rt, rec, scim.ResourceAttributes{
		"userName": "jbartlet",
	})

	assert.Equal(t, "jbartlet", rec.Get("user_name"))
	assert.Nil(t, rec.Get("display_name"))
}

func TestFromResourceCaseInsensitiveAttributeNames(t *testing.T) {
	rt := testType(t)
	rec := domain.NewRecord()

	FromResource(rt, rec, scim.ResourceAttributes{
		"USERNAME": "jbartlet",
		"Name": map[string]any{
			"GivenName": "Jed",
		},
	})

	assert.Equal(t, "jbartlet", rec.Get("user_name"))
	assert.Equal(t, "Jed", rec.Get("given_name"))
}

func TestToResource(t *testing.T) {
	rt := testType(t)
	now := time.Now().UTC()

	rec := domain.NewRecord()
	rec.ID = uuid.New()
	rec.CreatedAt = now
	rec.UpdatedAt = now.Add(time.Minute)
	rec.Set("user_name", "jbartlet")
	rec.Set("given_name", "Jed")
	rec.Set("family_name", "Bartlet")
	rec.Set("external_id", "ext-42")
	rec.Set("active", true)

	res := ToResource(rt, rec)

	assert.Equal(t, rec.ID.String(), res.ID)
	assert.Equal(t, "jbartlet", res.Attributes["userName"])
	assert.Equal(t, true, res.Attributes["active"])

	name, ok := res.Attributes["name"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Jed", name["givenName"])
	assert.Equal(t, "Bartlet", name["familyName"])

	// externalId lives on the envelope, not in the attribute bag.
	assert.Equal(t, "ext-42", res.ExternalID.Value())
	assert.NotContains(t, res.Attributes, "externalId")

	require.NotNil(t, res.Meta.Created)
	assert.Equal(t, now, *res.Meta.Created)
	require.NotNil(t, res.Meta.LastModified)
	assert.Equal(t, now.Add(time.Minute), *res.Meta.LastModified)
}

func TestToResourceOmitsNullColumns(t *testing.T) {
	rt := testType(t)
	rec := domain.NewRecord()
	rec.ID = uuid.New()
	rec.Set("user_name", "jbartlet")

	res := ToResource(rt, rec)

	assert.NotContains(t, res.Attributes, "displayName")
	assert.NotContains(t, res.Attributes, "name")
	assert.Nil(t, res.Meta.Created)
}

func TestValidate(t *testing.T) {
	rt := testType(t)

	t.Run("complete record passes", func(t *testing.T) {
		rec := domain.NewRecord()
		rec.Set("user_name", "jbartlet")

		assert.NoError(t, Validate(rt, rec))
		assert.False(t, rec.HasFieldErrors())
	})

	t.Run("missing required column fails", func(t *testing.T) {
		rec := domain.NewRecord()

		err := Validate(rt, rec)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Contains(t, err.Error(), "userName is required")
		assert.True(t, rec.HasFieldErrorTag(domain.TagRequired))
	})

	t.Run("empty string counts as missing", func(t *testing.T) {
		rec := domain.NewRecord()
		rec.Set("user_name", "")

		err := Validate(rt, rec)
		require.Error(t, err)
		assert.True(t, rec.HasFieldErrorTag(domain.TagRequired))
	})
}
