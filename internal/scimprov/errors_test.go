package scimprov

import (
	"errors"
	"net/http"
	"testing"

	scimerrors "github.com/elimity-com/scim/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visibuild/scimitar/internal/domain"
)

func TestTranslateError(t *testing.T) {
	takenRec := domain.NewRecord()
	takenRec.AddFieldError("userName", domain.TagTaken, "userName has already been taken")

	requiredRec := domain.NewRecord()
	requiredRec.AddFieldError("userName", domain.TagRequired, "userName is required")

	tests := []struct {
		name         string
		rec          *domain.Record
		err          error
		wantStatus   int
		wantScimType string
		wantDetail   string
	}{
		{
			name:       "not found",
			err:        domain.NewNotFoundError("User", "42"),
			wantStatus: http.StatusNotFound,
		},
		{
			name:         "uniqueness error from database",
			err:          domain.NewUniquenessError("User", "user_name", "userName has already been taken"),
			wantStatus:   http.StatusConflict,
			wantScimType: "uniqueness",
			wantDetail:   "userName has already been taken",
		},
		{
			name:         "taken field error without conflict signal",
			rec:          takenRec,
			err:          domain.NewValidationError("userName", domain.TagTaken, "userName has already been taken"),
			wantStatus:   http.StatusConflict,
			wantScimType: "uniqueness",
			wantDetail:   "userName has already been taken",
		},
		{
			name:         "invalid filter",
			err:          domain.NewInvalidFilterError("unable to parse filter expression", errors.New("boom")),
			wantStatus:   http.StatusBadRequest,
			wantScimType: "invalidFilter",
		},
		{
			name:         "validation error",
			rec:          requiredRec,
			err:          domain.NewValidationError("userName", domain.TagRequired, "userName is required"),
			wantStatus:   http.StatusBadRequest,
			wantScimType: "invalidValue",
			wantDetail:   "userName is required",
		},
		{
			name:       "unknown error stays opaque",
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.rec, tt.err)

			var scimErr scimerrors.ScimError
			require.ErrorAs(t, err, &scimErr)
			assert.Equal(t, tt.wantStatus, scimErr.Status)
			if tt.wantScimType != "" {
				assert.Equal(t, tt.wantScimType, string(scimErr.ScimType))
			}
			if tt.wantDetail != "" {
				assert.Contains(t, scimErr.Detail, tt.wantDetail)
			}
		})
	}
}

func TestErrorKind(t *testing.T) {
	takenRec := domain.NewRecord()
	takenRec.AddFieldError("userName", domain.TagTaken, "userName has already been taken")

	tests := []struct {
		name string
		rec  *domain.Record
		err  error
		want string
	}{
		{"not found", nil, domain.NewNotFoundError("User", "42"), kindNotFound},
		{"conflict", nil, domain.NewUniquenessError("User", "user_name", "taken"), kindUniqueness},
		{"taken record", takenRec, errors.New("save aborted"), kindUniqueness},
		{"invalid filter", nil, domain.NewInvalidFilterError("bad", nil), kindInvalidFilter},
		{"invalid value", nil, domain.NewValidationError("userName", domain.TagRequired, "required"), kindInvalidValue},
		{"internal", nil, errors.New("boom"), kindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorKind(tt.rec, tt.err))
		})
	}
}
