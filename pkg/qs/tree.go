package qs

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// Tree is a nested query structure keyed by bracket path segments.
//
// Leaves are string or []string; inner nodes are Tree. A Tree is treated as
// immutable once it has been built: Merge and Nest always return new trees
// and may share unchanged subtrees between their inputs and output.
type Tree map[string]any

// Nest builds a tree holding value at the given path.
//
//	Nest("shoes", "filters", "slug", "$eq") // filters[slug][$eq]=shoes
//
// Scalars are formatted with FormatValue; slices become []string leaves.
// A nil value, a value FormatValue rejects, or an empty path yields an
// empty tree. Callers that must not drop input check it with FormatValue
// first.
func Nest(value any, path ...string) Tree {
	if len(path) == 0 {
		return Tree{}
	}

	leaf, ok := leafOf(value)
	if !ok {
		return Tree{}
	}

	node := Tree{path[len(path)-1]: leaf}
	for i := len(path) - 2; i >= 0; i-- {
		node = Tree{path[i]: node}
	}

	return node
}

// Lookup returns the value stored at path.
func (t Tree) Lookup(path ...string) (any, bool) {
	var current any = t

	for _, segment := range path {
		node, ok := asTree(current)
		if !ok {
			return nil, false
		}

		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Clone returns a deep copy of the tree.
func (t Tree) Clone() Tree {
	out := make(Tree, len(t))

	for key, value := range t {
		switch v := value.(type) {
		case Tree:
			out[key] = v.Clone()
		case map[string]any:
			out[key] = Tree(v).Clone()
		case []string:
			out[key] = append([]string(nil), v...)
		default:
			out[key] = v
		}
	}

	return out
}

// Merge deep-merges src into dst and returns the result as a new tree.
// Inner nodes merge recursively; on an exact key collision the value from
// src wins, including whole arrays. Neither input is modified.
func Merge(dst, src Tree) Tree {
	out := make(Tree, len(dst)+len(src))

	for key, value := range dst {
		out[key] = value
	}

	for key, value := range src {
		existing, ok := asTree(out[key])
		incoming, isTree := asTree(value)

		if ok && isTree {
			out[key] = Merge(existing, incoming)

			continue
		}

		out[key] = value
	}

	return out
}

// FormatValue renders a scalar as it appears on the wire. The boolean is
// false for nil values, which are omitted rather than encoded as "null".
// Slices, maps and structs have no scalar form and return
// ErrUnsupportedValue.
func FormatValue(value any) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case time.Time:
		return v.Format(time.RFC3339), true, nil
	case fmt.Stringer:
		return v.String(), true, nil
	}

	rv := reflect.ValueOf(value)

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "", false, nil
		}

		return FormatValue(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), true, nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true, nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true, nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true, nil
	default:
		return "", false, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}

// FormatValues renders every element of a slice or array value. Nil
// elements are skipped. Non-slice values are rendered as a single element.
// Elements that are themselves lists, maps or structs return
// ErrUnsupportedValue.
func FormatValues(value any) ([]string, error) {
	if values, ok := value.([]string); ok {
		return append([]string(nil), values...), nil
	}

	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return nil, nil
	}

	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		s, ok, err := FormatValue(value)
		if err != nil || !ok {
			return nil, err
		}

		return []string{s}, nil
	}

	out := make([]string, 0, rv.Len())

	for i := 0; i < rv.Len(); i++ {
		s, ok, err := FormatValue(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}

		if ok {
			out = append(out, s)
		}
	}

	return out, nil
}

func leafOf(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case Tree:
		return v, true
	case map[string]any:
		return Tree(v), true
	case []byte:
		return string(v), true
	}

	kind := reflect.ValueOf(value).Kind()
	if kind == reflect.Slice || kind == reflect.Array {
		values, err := FormatValues(value)
		if err != nil || len(values) == 0 {
			return nil, false
		}

		return values, true
	}

	s, ok, err := FormatValue(value)
	if err != nil || !ok {
		return nil, false
	}

	return s, true
}

func asTree(value any) (Tree, bool) {
	switch v := value.(type) {
	case Tree:
		return v, true
	case map[string]any:
		return Tree(v), true
	default:
		return nil, false
	}
}
