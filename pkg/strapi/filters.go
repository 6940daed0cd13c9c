package strapi

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/fivetwenty-io/strapi-client/pkg/qs"
)

// Filter is one filter condition. Path holds the field name, preceded by
// relation names when the condition reaches into related content.
type Filter struct {
	Path     []string
	Operator Operator
	Value    any
}

// Tree compiles the filter into its query fragment,
// filters[<path...>][$<operator>]=<value>.
func (f Filter) Tree() (qs.Tree, error) {
	if len(f.Path) == 0 {
		return nil, ErrEmptyPath
	}

	for _, segment := range f.Path {
		if strings.TrimSpace(segment) == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyPathSegment, strings.Join(f.Path, "."))
		}
	}

	if !f.Operator.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, f.Operator)
	}

	value, err := operand(f.Operator, f.Value)
	if err != nil {
		return nil, fmt.Errorf("filter on %q: %w", strings.Join(f.Path, "."), err)
	}

	path := make([]string, 0, len(f.Path)+2)
	path = append(path, rootFilters)
	path = append(path, f.Path...)
	path = append(path, f.Operator.Key())

	return qs.Nest(value, path...), nil
}

// compileFilter builds the fragment for a filter on a field of the root
// resource. Relation paths are rejected; they go through
// compileRelationalFilter.
func compileFilter(field string, op Operator, value any) (qs.Tree, error) {
	if field == "" {
		return nil, ErrEmptyField
	}

	if strings.Contains(field, ".") {
		return nil, fmt.Errorf("%w: %q", ErrNestedField, field)
	}

	return Filter{Path: []string{field}, Operator: op, Value: value}.Tree()
}

// compileRelationalFilter builds the fragment for a filter on the leaf of a
// relation path. Only relation-safe operators are accepted.
func compileRelationalFilter(path []string, op Operator, value any) (qs.Tree, error) {
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}

	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, op)
	}

	if !op.Relational() {
		return nil, fmt.Errorf("%w: %q", ErrOperatorNotAllowed, op)
	}

	return Filter{Path: path, Operator: op, Value: value}.Tree()
}

// ParsePath splits a dotted relation path such as
// "subcategories.products.slug" into its segments.
func ParsePath(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}

	segments := strings.Split(path, ".")
	for i, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyPathSegment, path)
		}

		segments[i] = segment
	}

	return segments, nil
}

// operand shapes a filter value for the operator's arity.
func operand(op Operator, value any) (any, error) {
	switch operators[op].arity {
	case arityFlag:
		if value == nil {
			return "true", nil
		}

		formatted, _, err := qs.FormatValue(value)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", op, err)
		}

		return formatted, nil

	case arityPair:
		values, err := qs.FormatValues(value)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", op, err)
		}

		if !isList(value) || len(values) != 2 {
			return nil, fmt.Errorf("%w: got %v", ErrInvalidBetween, value)
		}

		return values, nil

	case arityList:
		values, err := qs.FormatValues(value)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", op, err)
		}

		if len(values) == 0 {
			return nil, ErrEmptyValues
		}

		return values, nil

	default:
		if isList(value) {
			return nil, fmt.Errorf("%w: %q", ErrMultipleValues, op)
		}

		formatted, ok, err := qs.FormatValue(value)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", op, err)
		}

		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNilValue, op)
		}

		return formatted, nil
	}
}

// listOperand unwraps a single slice passed to a variadic list builder, so
// In("id", ids) and In("id", 1, 2) compile alike.
func listOperand(values []any) any {
	if len(values) == 1 && isList(values[0]) {
		return values[0]
	}

	return values
}

func isList(value any) bool {
	if value == nil {
		return false
	}

	if _, ok := value.([]byte); ok {
		return false
	}

	kind := reflect.TypeOf(value).Kind()

	return kind == reflect.Slice || kind == reflect.Array
}
