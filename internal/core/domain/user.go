package domain

import "sort"

// Username is the client-supplied name a connection registers under.
// Any string is accepted, including the empty string.
type Username string

// SortUsernames sorts names in place and returns them.
func SortUsernames(names []Username) []Username {
	sort.Slice(names, func(i, j int) bool {
		return names[i] < names[j]
	})
	return names
}

// UsernameStrings converts names to plain strings for encoding.
func UsernameStrings(names []Username) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
