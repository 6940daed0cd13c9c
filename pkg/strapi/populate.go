package strapi

import (
	"fmt"
	"strings"

	"github.com/fivetwenty-io/strapi-client/pkg/qs"
	"github.com/hashicorp/go-multierror"
)

// compilePopulateAll populates every relation one level deep.
func compilePopulateAll() qs.Tree {
	return qs.Tree{rootPopulate: wildcard}
}

// compilePopulateWith populates one relation, limited to fields when any
// are given, and with all of its own relations when deeper is set.
func compilePopulateWith(relation string, fields []string, deeper bool) (qs.Tree, error) {
	if strings.TrimSpace(relation) == "" {
		return nil, ErrEmptyRelation
	}

	segments, err := ParsePath(relation)
	if err != nil {
		return nil, err
	}

	if err := checkFieldNames(fields); err != nil {
		return nil, err
	}

	node := qs.Tree{}
	if len(fields) > 0 {
		node[rootFields] = append([]string(nil), fields...)
	}

	if deeper {
		node[rootPopulate] = wildcard
	}

	return replaceAt(qs.Tree{}, populateKeys(segments), populateValue(node)), nil
}

// compilePopulateDeep compiles descriptors of any depth into one populate
// fragment. A descriptor naming the same relation as an earlier sibling
// replaces it. Every invalid descriptor is reported, not just the first.
func compilePopulateDeep(descriptors []PopulateDescriptor) (qs.Tree, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("%w: no populate descriptors", ErrEmptyPath)
	}

	var result *multierror.Error

	tree := qs.Tree{}

	for _, descriptor := range descriptors {
		tree = placeDescriptor(tree, descriptor, "", &result)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return tree, nil
}

// placeDescriptor returns a copy of tree with the descriptor compiled under
// its populate keys. parent is the dotted path of the enclosing descriptor
// and only used in error messages.
func placeDescriptor(tree qs.Tree, descriptor PopulateDescriptor, parent string, result **multierror.Error) qs.Tree {
	location := descriptor.Path
	if parent != "" {
		location = parent + "." + descriptor.Path
	}

	segments, err := ParsePath(descriptor.Path)
	if err != nil {
		*result = multierror.Append(*result, fmt.Errorf("populate %q: %w", location, err))

		return tree
	}

	if err := checkFieldNames(descriptor.Fields); err != nil {
		*result = multierror.Append(*result, fmt.Errorf("populate %q: %w", location, err))

		return tree
	}

	node := qs.Tree{}
	if len(descriptor.Fields) > 0 {
		node[rootFields] = append([]string(nil), descriptor.Fields...)
	}

	for _, child := range descriptor.Children {
		node = placeDescriptor(node, child, location, result)
	}

	return replaceAt(tree, populateKeys(segments), populateValue(node))
}

// populateKeys turns ["a", "b"] into ["populate", "a", "populate", "b"].
func populateKeys(segments []string) []string {
	keys := make([]string, 0, 2*len(segments))
	for _, segment := range segments {
		keys = append(keys, rootPopulate, segment)
	}

	return keys
}

func populateValue(node qs.Tree) any {
	if len(node) == 0 {
		return wildcard
	}

	return node
}

// replaceAt returns a copy of tree with value stored at path. Intermediate
// nodes are copied, the node at path is replaced as a whole.
func replaceAt(tree qs.Tree, path []string, value any) qs.Tree {
	out := make(qs.Tree, len(tree)+1)
	for key, existing := range tree {
		out[key] = existing
	}

	if len(path) == 1 {
		out[path[0]] = value

		return out
	}

	child, _ := out[path[0]].(qs.Tree)
	out[path[0]] = replaceAt(child, path[1:], value)

	return out
}

func checkFieldNames(fields []string) error {
	for _, field := range fields {
		if strings.TrimSpace(field) == "" {
			return ErrEmptyField
		}
	}

	return nil
}
