package strapi

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/iancoleman/strcase"
)

// Fields every content type carries regardless of its declared schema.
var systemFields = []string{"id", "documentId", "createdAt", "updatedAt", "publishedAt", "locale"}

// schema is the set of field names accepted for a target type. An open
// schema accepts any name; it is used for maps, interfaces and scalars.
type schema struct {
	name   string
	fields map[string]struct{}
	open   bool
}

var schemas sync.Map // reflect.Type -> *schema

// schemaOf returns the cached schema of T, deriving it on first use.
// Slices, arrays and pointers are unwrapped so that From[[]Product] checks
// field names against Product.
func schemaOf[T any]() *schema {
	typ := reflect.TypeOf((*T)(nil)).Elem()

	if cached, ok := schemas.Load(typ); ok {
		return cached.(*schema) //nolint:forcetypeassert // only *schema is stored
	}

	derived, _ := schemas.LoadOrStore(typ, deriveSchema(typ))

	return derived.(*schema) //nolint:forcetypeassert // only *schema is stored
}

func deriveSchema(typ reflect.Type) *schema {
	for typ.Kind() == reflect.Pointer || typ.Kind() == reflect.Slice || typ.Kind() == reflect.Array {
		typ = typ.Elem()
	}

	if typ.Kind() != reflect.Struct {
		return &schema{name: typ.String(), open: true}
	}

	s := &schema{name: typ.Name(), fields: make(map[string]struct{})}
	for _, field := range systemFields {
		s.fields[field] = struct{}{}
	}

	collectFields(typ, s.fields)

	return s
}

func collectFields(typ reflect.Type, into map[string]struct{}) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}

		name, _, _ := strings.Cut(tag, ",")

		if field.Anonymous && name == "" {
			embedded := field.Type
			if embedded.Kind() == reflect.Pointer {
				embedded = embedded.Elem()
			}

			if embedded.Kind() == reflect.Struct {
				collectFields(embedded, into)

				continue
			}
		}

		if !field.IsExported() {
			continue
		}

		if name == "" {
			name = strcase.ToLowerCamel(field.Name)
		}

		into[name] = struct{}{}
	}
}

// check verifies that field is a top-level field of the schema.
func (s *schema) check(field string) error {
	if field == "" {
		return ErrEmptyField
	}

	if s == nil || s.open {
		return nil
	}

	if _, ok := s.fields[field]; ok {
		return nil
	}

	return fmt.Errorf("%w: %q is not a field of %s", ErrUnknownField, field, s.name)
}

// Fields returns the sorted field names, or nil for an open schema.
func (s *schema) Fields() []string {
	if s == nil || s.open {
		return nil
	}

	out := make([]string, 0, len(s.fields))
	for field := range s.fields {
		out = append(out, field)
	}

	sort.Strings(out)

	return out
}

// FieldsOf returns the field names accepted in filters, sorts and populate
// directives for T. It is nil when T does not restrict field names.
func FieldsOf[T any]() []string {
	return schemaOf[T]().Fields()
}
