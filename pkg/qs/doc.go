// Package qs converts between nested query trees and bracket-notation query
// strings of the form "filters[slug][$eq]=shoes&sort[0]=id:asc".
//
// The package holds no state. Encode and Decode are inverses for every tree
// whose leaves are strings or string slices, Merge combines trees with
// last-write-wins on exact key collisions, and AppendQuery / MergeURL attach
// fragments to URLs that may already carry a query.
package qs
