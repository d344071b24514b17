package analysis

import (
	"sort"

	"github.com/kiranshivaraju/triage/pkg/editdist"
)

type rankedKey struct {
	bound int
	key   string
}

// FindMatch returns the first key in keys within the edit-distance threshold
// of candidate. Keys are tried in order of increasing ngram lower bound, ties
// broken by key, so the result does not depend on the order of keys.
//
// The per-pair limit is Threshold times the mean length of the two strings.
// A pair whose limit is at most 1 only matches if the strings are equal.
func (e *Engine) FindMatch(candidate string, keys []string) (string, bool) {
	if len(keys) == 0 {
		return "", false
	}

	ranked := make([]rankedKey, len(keys))
	for i, k := range keys {
		ranked[i] = rankedKey{bound: e.profiler.LowerBound(candidate, k), key: k}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].bound != ranked[j].bound {
			return ranked[i].bound < ranked[j].bound
		}
		return ranked[i].key < ranked[j].key
	})

	for _, r := range ranked {
		limit := int(float64(len(candidate)+len(r.key)) / 2 * e.opts.Threshold)
		if r.bound > limit {
			continue
		}
		if limit <= 1 {
			if r.key == candidate {
				return r.key, true
			}
			continue
		}
		if editdist.Distance(candidate, r.key, limit) < limit {
			return r.key, true
		}
	}
	return "", false
}
