// Package editdist computes Levenshtein edit distances between strings.
//
// Distance is a bounded computation in the style of Berghel and Roach: it
// runs Ukkonen's furthest-reaching diagonal recurrence, but only over the
// diagonals that can still lie on a path of cost <= limit ending on the main
// diagonal. Each round p is derived from round p-1 alone, so two rolling
// per-diagonal buffers are kept and working memory is O(limit).
// Strings are compared byte by byte.
package editdist

import "math"

// unreachable marks a diagonal that no path of the current cost reaches.
// It stays negative after the +1 applied by the recurrence.
const unreachable = math.MinInt32

// Distance returns the Levenshtein distance between pattern and target when
// that distance is at most limit. When it is larger, Distance returns some
// value greater than limit, not necessarily the true distance.
// A negative limit is treated as zero.
func Distance(pattern, target string, limit int) int {
	if limit < 0 {
		limit = 0
	}
	m, n := len(pattern), len(target)

	// The answer lies on this diagonal and can't be below its offset.
	main := m - n
	if abs(main) > limit {
		return abs(main)
	}

	// Common affixes never change the distance.
	for m > 0 && n > 0 && pattern[0] == target[0] {
		pattern, target = pattern[1:], target[1:]
		m, n = m-1, n-1
	}
	for m > 0 && n > 0 && pattern[m-1] == target[n-1] {
		pattern, target = pattern[:m-1], target[:n-1]
		m, n = m-1, n-1
	}
	if m == 0 || n == 0 {
		return m + n
	}

	// The distance never exceeds the longer string.
	if longest := max(m, n); limit > longest {
		limit = longest
	}

	// Diagonal k = i - j lives at index k+off. One guard slot on each side
	// keeps the k-1 and k+1 lookups in bounds.
	off := limit + 1
	width := 2*limit + 3
	prev := make([]int, width)
	cur := make([]int, width)
	for i := range prev {
		prev[i] = unreachable
	}
	// Row -1 of diagonal 0 at cost -1 seeds the recurrence.
	prev[off] = -1

	for p := 0; p <= limit; p++ {
		for i := range cur {
			cur[i] = unreachable
		}
		// A path of cost p on diagonal k still needs |k-main| edits.
		lo := max(-p, main-(limit-p))
		hi := min(p, main+(limit-p))
		for k := lo; k <= hi; k++ {
			row := prev[off+k] + 1 // substitution
			if r := prev[off+k-1]; r > row {
				row = r // deletion from pattern
			}
			if r := prev[off+k+1] + 1; r > row {
				row = r // insertion into pattern
			}
			end := min(n, m-k)
			if row > end {
				row = end
			}
			if row < 0 || row+k < 0 {
				continue
			}
			for row < end && pattern[row+k] == target[row] {
				row++
			}
			cur[off+k] = row
		}
		if lo <= main && main <= hi && cur[off+main] == n {
			return p
		}
		prev, cur = cur, prev
	}
	return limit + 1
}

// Levenshtein returns the exact edit distance between a and b using the
// classic dynamic program in O(len(a)*len(b)) time and O(len(b)) space.
func Levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
