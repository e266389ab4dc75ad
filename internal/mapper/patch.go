package mapper

import (
	"fmt"
	"strings"

	"github.com/elimity-com/scim"

	"github.com/visibuild/scimitar/internal/domain"
)

// ApplyPatch applies protocol patch operations to a record. Operation
// grammar (add/remove/replace, optional attribute path) follows RFC 7644
// §3.5.2; targets are resolved through the resource type's attribute map.
// An operation addressing an unmapped or filtered path fails with an
// ErrInvalidInput-class error so callers can report a client error.
func ApplyPatch(rt *domain.ResourceType, rec *domain.Record, operations []scim.PatchOperation) error {
	for _, op := range operations {
		if err := applyOperation(rt, rec, op); err != nil {
			return err
		}
	}
	return nil
}

func applyOperation(rt *domain.ResourceType, rec *domain.Record, op scim.PatchOperation) error {
	switch strings.ToLower(op.Op) {
	case scim.PatchOperationAdd:
		return applySet(rt, rec, op, true)
	case scim.PatchOperationReplace:
		return applySet(rt, rec, op, false)
	case scim.PatchOperationRemove:
		return applyRemove(rt, rec, op)
	default:
		return domain.NewValidationError("op", "invalid", fmt.Sprintf("unsupported patch operation %q", op.Op))
	}
}

func applySet(rt *domain.ResourceType, rec *domain.Record, op scim.PatchOperation, add bool) error {
	if op.Path == nil {
		// Pathless add/replace carries a partial resource document;
		// apply each mapped attribute it contains.
		values, ok := op.Value.(map[string]any)
		if !ok {
			return domain.NewValidationError("value", "invalid", "patch value must be a complex attribute when no path is given")
		}
		return applyDocument(rt, rec, "", values, add)
	}

	path, err := patchPath(op)
	if err != nil {
		return err
	}

	column, ok := rt.Column(path)
	if !ok {
		// The path may address a complex attribute whose sub-attributes
		// are mapped individually, e.g. path "name" with a map value.
		if values, isMap := op.Value.(map[string]any); isMap {
			return applyDocument(rt, rec, path, values, add)
		}
		return domain.NewValidationError(path, "path", fmt.Sprintf("attribute %q has no mapping", path))
	}

	setColumn(rt, rec, column, op.Value, add)
	return nil
}

// setColumn writes a patched value. An add targeting a multi-valued
// column appends to the stored list (RFC 7644 §3.5.2.1); replace and
// single-valued adds overwrite.
func setColumn(rt *domain.ResourceType, rec *domain.Record, column string, value any, add bool) {
	if add && rt.IsJSON(column) {
		rec.Set(column, appendValues(rec.Get(column), value))
		return
	}
	rec.Set(column, value)
}

// appendValues merges added values into an existing multi-valued list.
func appendValues(existing, value any) []any {
	current, ok := existing.([]any)
	if !ok && existing != nil {
		current = []any{existing}
	}
	if added, ok := value.([]any); ok {
		return append(current, added...)
	}
	return append(current, value)
}

func applyRemove(rt *domain.ResourceType, rec *domain.Record, op scim.PatchOperation) error {
	if op.Path == nil {
		return domain.NewValidationError("path", "required", "remove operations require a path")
	}

	path, err := patchPath(op)
	if err != nil {
		return err
	}

	column, ok := rt.Column(path)
	if !ok {
		return domain.NewValidationError(path, "path", fmt.Sprintf("attribute %q has no mapping", path))
	}

	rec.Set(column, nil)
	return nil
}

// applyDocument walks a nested value document, setting every mapped
// attribute it reaches. Unmapped leaves inside the document are ignored,
// matching full-replace semantics for unknown attributes.
func applyDocument(rt *domain.ResourceType, rec *domain.Record, prefix string, values map[string]any, add bool) error {
	for key, value := range values {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		if column, ok := rt.Column(path); ok {
			setColumn(rt, rec, column, value, add)
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			if err := applyDocument(rt, rec, path, nested, add); err != nil {
				return err
			}
		}
	}
	return nil
}

// patchPath renders an operation's target path as a dotted attribute
// path. Value filters on multi-valued attributes are not supported by
// the relational mapping.
func patchPath(op scim.PatchOperation) (string, error) {
	if op.Path.ValueExpression != nil {
		return "", domain.NewValidationError(op.Path.String(), "path", "patch paths with value filters are not supported")
	}

	ap := op.Path.AttributePath
	path := ap.AttributeName
	if ap.SubAttribute != nil {
		path += "." + *ap.SubAttribute
	}
	if op.Path.SubAttribute != nil {
		path += "." + *op.Path.SubAttribute
	}
	return path, nil
}
