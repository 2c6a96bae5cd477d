// Package bookmark encodes (query, work item) pairs as document bookmark names.
package bookmark

import (
	"strconv"
	"strings"
)

// Prefix starts every work item bookmark name.
const Prefix = "WI_"

// Name returns the bookmark name for a work item rendered by a query.
// Names start with a letter and use only letters, digits and underscores.
func Name(query, id int) string {
	return Prefix + strconv.Itoa(query) + "_" + strconv.Itoa(id)
}

// Parse is the inverse of Name. Names that Name could not have produced are
// rejected.
func Parse(name string) (query, id int, ok bool) {
	rest, found := strings.CutPrefix(name, Prefix)
	if !found {
		return 0, 0, false
	}
	qs, is, found := strings.Cut(rest, "_")
	if !found {
		return 0, 0, false
	}
	query, ok = canonicalInt(qs)
	if !ok {
		return 0, 0, false
	}
	id, ok = canonicalInt(is)
	if !ok {
		return 0, 0, false
	}
	return query, id, true
}

// Codec adapts the package functions to interfaces that take a codec value.
type Codec struct{}

func (Codec) Name(query, id int) string                 { return Name(query, id) }
func (Codec) Parse(name string) (query, id int, ok bool) { return Parse(name) }

func canonicalInt(s string) (int, bool) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
