package index

import "github.com/poiesic/docqa/core"

// Filter restricts a search to a set of document labels.
// The zero value is Unrestricted.
type Filter struct {
	restricted bool
	allowed    core.DocumentSet
}

// Unrestricted matches every document.
func Unrestricted() Filter {
	return Filter{}
}

// AllowOnly matches only the documents in allowed. An empty or nil set matches nothing.
func AllowOnly(allowed core.DocumentSet) Filter {
	return Filter{restricted: true, allowed: allowed}
}

// Allows reports whether a chunk from label passes the filter.
func (f Filter) Allows(label string) bool {
	return !f.restricted || f.allowed.Contains(label)
}

// MatchesNothing reports whether the filter is an explicit empty allow list.
func (f Filter) MatchesNothing() bool {
	return f.restricted && f.allowed.Len() == 0
}

// Restricted reports whether the filter carries an allow list.
func (f Filter) Restricted() bool {
	return f.restricted
}
