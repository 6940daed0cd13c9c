package qs

import (
	"sort"
	"strings"

	"github.com/facette/natsort"
)

const upperHex = "0123456789ABCDEF"

// Encode serializes a tree into a bracket-notation query string without the
// leading "?". Keys at every level are emitted in natural order so the
// output is stable for a given tree, and arrays repeat their key with a
// trailing "[]". Structural brackets are written literally; key segments
// and values are percent-encoded outside the query-safe character set.
func Encode(t Tree) string {
	var builder strings.Builder

	encodeNode(&builder, "", t)

	return builder.String()
}

func encodeNode(builder *strings.Builder, prefix string, node Tree) {
	for _, key := range sortedKeys(node) {
		name := Escape(key)
		if prefix != "" {
			name = prefix + "[" + name + "]"
		}

		switch value := node[key].(type) {
		case nil:
		case Tree:
			encodeNode(builder, name, value)
		case map[string]any:
			encodeNode(builder, name, Tree(value))
		case []string:
			for _, element := range value {
				writePair(builder, name+"[]", element)
			}
		case []any:
			// Trees built through Nest never hold unencodable elements.
			elements, _ := FormatValues(value)
			for _, element := range elements {
				writePair(builder, name+"[]", element)
			}
		default:
			if s, ok, err := FormatValue(value); err == nil && ok {
				writePair(builder, name, s)
			}
		}
	}
}

func writePair(builder *strings.Builder, key, value string) {
	if builder.Len() > 0 {
		builder.WriteByte('&')
	}

	builder.WriteString(key)
	builder.WriteByte('=')
	builder.WriteString(Escape(value))
}

func sortedKeys(node Tree) []string {
	keys := make([]string, 0, len(node))
	for key := range node {
		keys = append(keys, key)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		return natsort.Compare(keys[i], keys[j])
	})

	return keys
}

// Escape percent-encodes s for use as a query key segment or value.
// Unreserved characters and the sub-delimiters that carry meaning in the
// filter grammar (such as "$", ":" and "*") are left as is.
func Escape(s string) string {
	clean := true

	for i := 0; i < len(s); i++ {
		if !isQuerySafe(s[i]) {
			clean = false

			break
		}
	}

	if clean {
		return s
	}

	var builder strings.Builder

	builder.Grow(len(s) + len(s)/2)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isQuerySafe(c) {
			builder.WriteByte(c)

			continue
		}

		builder.WriteByte('%')
		builder.WriteByte(upperHex[c>>4])
		builder.WriteByte(upperHex[c&0x0f])
	}

	return builder.String()
}

func isQuerySafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}

	switch c {
	case '-', '_', '.', '~', '!', '*', '\'', '(', ')', ':', '@', '/', ',', '$':
		return true
	}

	return false
}
