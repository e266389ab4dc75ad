package scimprov

import (
	"errors"

	scimerrors "github.com/elimity-com/scim/errors"

	"github.com/visibuild/scimitar/internal/domain"
)

// Error kind labels used for metrics.
const (
	kindNotFound      = "not_found"
	kindUniqueness    = "uniqueness"
	kindInvalidFilter = "invalid_filter"
	kindInvalidValue  = "invalid_value"
	kindInternal      = "internal"
)

// translateError maps a domain error to its protocol representation.
// Field errors recorded on the record refine the outcome: any field
// tagged "taken" forces the uniqueness scimType even when the error
// itself carries no conflict signal, and joined field messages become
// the response detail.
func translateError(rec *domain.Record, err error) error {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return scimerrors.ScimErrorResourceNotFound(nf.ID)
	}

	detail := errorDetail(rec, err)

	switch {
	case errors.Is(err, domain.ErrConflict),
		rec != nil && rec.HasFieldErrorTag(domain.TagTaken):
		e := scimerrors.ScimErrorUniqueness
		e.Detail = detail
		return e
	case errors.Is(err, domain.ErrInvalidFilter):
		e := scimerrors.ScimErrorInvalidFilter
		e.Detail = detail
		return e
	case errors.Is(err, domain.ErrInvalidInput):
		e := scimerrors.ScimErrorInvalidValue
		e.Detail = detail
		return e
	default:
		return scimerrors.ScimErrorInternal
	}
}

// errorDetail picks the most specific human-readable detail available:
// field errors first, then the error message, then a placeholder.
func errorDetail(rec *domain.Record, err error) string {
	if rec != nil {
		if joined := rec.JoinedFieldErrors("; "); joined != "" {
			return joined
		}
	}
	if err != nil {
		return err.Error()
	}
	return "Unknown"
}

// errorKind classifies an error for metrics labels.
func errorKind(rec *domain.Record, err error) string {
	var nf *domain.NotFoundError
	switch {
	case errors.As(err, &nf):
		return kindNotFound
	case errors.Is(err, domain.ErrConflict),
		rec != nil && rec.HasFieldErrorTag(domain.TagTaken):
		return kindUniqueness
	case errors.Is(err, domain.ErrInvalidFilter):
		return kindInvalidFilter
	case errors.Is(err, domain.ErrInvalidInput):
		return kindInvalidValue
	default:
		return kindInternal
	}
}
