package models

import (
	"sort"
	"strings"
)

// Owners maps an owner name to the test name prefixes it owns.
type Owners map[string][]string

// Names returns the owner names in sorted order.
func (o Owners) Names() []string {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Match returns the owner with the longest prefix of name, ties broken by
// owner name.
func (o Owners) Match(name string) (string, bool) {
	best, bestLen := "", -1
	for _, owner := range o.Names() {
		for _, prefix := range o[owner] {
			if len(prefix) > bestLen && strings.HasPrefix(name, prefix) {
				best, bestLen = owner, len(prefix)
			}
		}
	}
	return best, bestLen >= 0
}
