package qs

import (
	"fmt"
	"strings"
)

// AppendQuery appends an encoded fragment to rawURL. It adds "?" when rawURL
// has no query yet and "&" otherwise; the existing portion is never
// re-encoded or dropped.
func AppendQuery(rawURL, fragment string) string {
	fragment = strings.TrimLeft(fragment, "?&")
	if fragment == "" {
		return rawURL
	}

	idx := strings.IndexByte(rawURL, '?')

	switch {
	case idx < 0:
		return rawURL + "?" + fragment
	case idx == len(rawURL)-1, strings.HasSuffix(rawURL, "&"):
		return rawURL + fragment
	default:
		return rawURL + "&" + fragment
	}
}

// SplitURL separates rawURL into the part before "?" and the raw query.
// A "#fragment" suffix is discarded.
func SplitURL(rawURL string) (string, string) {
	rawURL, _, _ = strings.Cut(rawURL, "#")
	base, query, _ := strings.Cut(rawURL, "?")

	return base, query
}

// MergeURL merges fragment into whatever query rawURL already carries and
// re-encodes the result once. Keys present in both keep the fragment's value.
func MergeURL(rawURL string, fragment Tree) (string, error) {
	base, query := SplitURL(rawURL)

	existing, err := Decode(query)
	if err != nil {
		return "", fmt.Errorf("decoding query of %q: %w", rawURL, err)
	}

	return AppendQuery(base, Encode(Merge(existing, fragment))), nil
}
