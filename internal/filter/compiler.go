// Package filter compiles parsed SCIM filter expressions into SQL
// predicates against a resource type's attribute map.
//
// Parsing of the filter grammar itself is delegated to
// github.com/scim2/filter-parser/v2; this package walks the resulting AST
// and emits a parameterized WHERE fragment. Parse failures and compile
// failures are both surfaced as domain.InvalidFilterError so that callers
// can report them as client errors, never as fatal conditions.
package filter

import (
	"fmt"
	"strings"

	scimfilter "github.com/scim2/filter-parser/v2"

	"github.com/visibuild/scimitar/internal/domain"
)

// Predicate is a compiled, composable query restriction: a SQL fragment
// with numbered placeholders and its bound arguments.
type Predicate struct {
	SQL  string
	Args []any
}

// compiler accumulates arguments while walking the expression tree.
// Placeholder numbering starts after argOffset so the predicate can be
// appended to a query that already binds arguments.
type compiler struct {
	rt        *domain.ResourceType
	argOffset int
	args      []any
}

// Compile translates a parsed filter expression into a Predicate. A nil
// expression compiles to a nil predicate, leaving the base scope
// unmodified.
func Compile(expr scimfilter.Expression, rt *domain.ResourceType, argOffset int) (*Predicate, error) {
	if expr == nil {
		return nil, nil
	}

	c := &compiler{rt: rt, argOffset: argOffset}
	sql, err := c.walk(expr)
	if err != nil {
		return nil, err
	}

	return &Predicate{SQL: sql, Args: c.args}, nil
}

// CompileString parses a raw filter string and compiles it. An empty
// string compiles to a nil predicate.
func CompileString(raw string, rt *domain.ResourceType, argOffset int) (*Predicate, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	expr, err := scimfilter.ParseFilter([]byte(raw))
	if err != nil {
		return nil, domain.NewInvalidFilterError("unable to parse filter expression", err)
	}

	return Compile(expr, rt, argOffset)
}

func (c *compiler) walk(expr scimfilter.Expression) (string, error) {
	switch e := expr.(type) {
	case *scimfilter.AttributeExpression:
		return c.attribute(e)
	case *scimfilter.LogicalExpression:
		return c.logical(e)
	case *scimfilter.NotExpression:
		inner, err := c.walk(e.Expression)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", inner), nil
	default:
		return "", domain.NewInvalidFilterError(fmt.Sprintf("unsupported filter expression %T", expr), nil)
	}
}

func (c *compiler) logical(e *scimfilter.LogicalExpression) (string, error) {
	left, err := c.walk(e.Left)
	if err != nil {
		return "", err
	}
	right, err := c.walk(e.Right)
	if err != nil {
		return "", err
	}

	op := "AND"
	if e.Operator == scimfilter.OR {
		op = "OR"
	}
	return fmt.Sprintf("(%s %s %s)", left, op, right), nil
}

func (c *compiler) attribute(e *scimfilter.AttributeExpression) (string, error) {
	column, err := c.resolve(e.AttributePath)
	if err != nil {
		return "", err
	}

	switch e.Operator {
	case scimfilter.PR:
		return fmt.Sprintf("%s IS NOT NULL", column), nil
	case scimfilter.EQ:
		if _, ok := e.CompareValue.(string); ok {
			return fmt.Sprintf("LOWER(%s) = LOWER(%s)", column, c.bind(e.CompareValue)), nil
		}
		return fmt.Sprintf("%s = %s", column, c.bind(e.CompareValue)), nil
	case scimfilter.NE:
		if _, ok := e.CompareValue.(string); ok {
			return fmt.Sprintf("LOWER(%s) <> LOWER(%s)", column, c.bind(e.CompareValue)), nil
		}
		return fmt.Sprintf("%s <> %s", column, c.bind(e.CompareValue)), nil
	case scimfilter.CO:
		return fmt.Sprintf("%s ILIKE %s", column, c.bind("%"+escapeLike(e.CompareValue)+"%")), nil
	case scimfilter.SW:
		return fmt.Sprintf("%s ILIKE %s", column, c.bind(escapeLike(e.CompareValue)+"%")), nil
	case scimfilter.EW:
		return fmt.Sprintf("%s ILIKE %s", column, c.bind("%"+escapeLike(e.CompareValue))), nil
	case scimfilter.GT:
		return fmt.Sprintf("%s > %s", column, c.bind(e.CompareValue)), nil
	case scimfilter.GE:
		return fmt.Sprintf("%s >= %s", column, c.bind(e.CompareValue)), nil
	case scimfilter.LT:
		return fmt.Sprintf("%s < %s", column, c.bind(e.CompareValue)), nil
	case scimfilter.LE:
		return fmt.Sprintf("%s <= %s", column, c.bind(e.CompareValue)), nil
	default:
		return "", domain.NewInvalidFilterError(fmt.Sprintf("unsupported filter operator %q", e.Operator), nil)
	}
}

// resolve maps an attribute path from the filter AST to its native
// column. Filtering on unmapped attributes or JSON document columns is
// rejected as an invalid filter.
func (c *compiler) resolve(ap scimfilter.AttributePath) (string, error) {
	if ap.URIPrefix != nil {
		return "", domain.NewInvalidFilterError(fmt.Sprintf("unsupported schema URI prefix %q", *ap.URIPrefix), nil)
	}

	path := ap.AttributeName
	if ap.SubAttribute != nil {
		path += "." + *ap.SubAttribute
	}

	column, ok := c.rt.Column(path)
	if !ok {
		return "", domain.NewInvalidFilterError(fmt.Sprintf("attribute %q is not filterable", path), nil)
	}
	if c.rt.IsJSON(column) {
		return "", domain.NewInvalidFilterError(fmt.Sprintf("attribute %q is not filterable", path), nil)
	}

	return column, nil
}

// bind appends an argument and returns its placeholder.
func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", c.argOffset+len(c.args))
}

// escapeLike escapes LIKE metacharacters in a comparison operand.
// Non-string operands are formatted with fmt.Sprint before escaping.
func escapeLike(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
