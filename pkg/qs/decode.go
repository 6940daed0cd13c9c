package qs

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Static errors for err113 compliance.
var (
	ErrMalformedKey     = errors.New("malformed bracket key")
	ErrUnsupportedKey   = errors.New("unsupported bracket key")
	ErrUnsupportedValue = errors.New("value has no query string form")
)

// Decode parses a raw query fragment back into the tree shape Encode
// consumes. A leading "?" is ignored, "+" decodes to a space, a trailing
// "[]" appends to an array and indexed keys such as "sort[0]" are kept as
// ordinary map keys. Repeating a scalar key keeps the last value.
func Decode(raw string) (Tree, error) {
	raw = strings.TrimPrefix(raw, "?")
	tree := Tree{}

	if raw == "" {
		return tree, nil
	}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(pair, "=")

		segments, err := splitKey(rawKey)
		if err != nil {
			return nil, err
		}

		if len(segments) == 0 {
			continue
		}

		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("decoding value of %q: %w", rawKey, err)
		}

		insert(tree, segments, value)
	}

	return tree, nil
}

// splitKey turns "a[b][c]" into ["a", "b", "c"] and "a[b][]" into
// ["a", "b", ""]. Segments are unescaped after the structure is parsed so
// that an escaped bracket inside a segment is not mistaken for structure.
func splitKey(rawKey string) ([]string, error) {
	if !strings.Contains(rawKey, "[") && strings.Contains(strings.ToUpper(rawKey), "%5B") {
		unescaped, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrMalformedKey, rawKey, err)
		}

		rawKey = unescaped
	}

	rootEnd := strings.IndexByte(rawKey, '[')
	if rootEnd < 0 {
		rootEnd = len(rawKey)
	}

	if rootEnd == 0 {
		if rawKey == "" {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: %q has no root name", ErrMalformedKey, rawKey)
	}

	parts := []string{rawKey[:rootEnd]}
	rest := rawKey[rootEnd:]

	for rest != "" {
		if rest[0] != '[' {
			return nil, fmt.Errorf("%w: %q", ErrMalformedKey, rawKey)
		}

		closing := strings.IndexByte(rest, ']')
		if closing < 0 {
			return nil, fmt.Errorf("%w: %q is missing a closing bracket", ErrMalformedKey, rawKey)
		}

		parts = append(parts, rest[1:closing])
		rest = rest[closing+1:]
	}

	for i, part := range parts {
		if part == "" && i != len(parts)-1 {
			return nil, fmt.Errorf("%w: %q uses an empty segment before the last one", ErrUnsupportedKey, rawKey)
		}

		unescaped, err := url.QueryUnescape(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrMalformedKey, rawKey, err)
		}

		parts[i] = unescaped
	}

	return parts, nil
}

func insert(node Tree, segments []string, value string) {
	key := segments[0]
	rest := segments[1:]

	switch {
	case len(rest) == 0:
		node[key] = value
	case len(rest) == 1 && rest[0] == "":
		values, _ := node[key].([]string)
		node[key] = append(values, value)
	default:
		child, ok := node[key].(Tree)
		if !ok {
			child = Tree{}
			node[key] = child
		}

		insert(child, rest, value)
	}
}
