package analysis

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash/crc32"
)

const (
	ngramLen         = 4
	histogramBuckets = 64
)

// Histogram counts hashed 4-byte windows of a string in 64 buckets.
type Histogram [histogramBuckets]int

// Profiler memoizes ngram histograms for the lifetime of one clustering run.
// Distinct normalized strings are bounded by distinct failure shapes, so the
// memo is never evicted. A Profiler is not safe for concurrent use.
type Profiler struct {
	histograms map[string]*Histogram
}

// NewProfiler returns an empty Profiler.
func NewProfiler() *Profiler {
	return &Profiler{histograms: make(map[string]*Histogram)}
}

// Histogram returns the memoized histogram of s. Callers must not modify it.
func (p *Profiler) Histogram(s string) *Histogram {
	if h, ok := p.histograms[s]; ok {
		return h
	}
	h := new(Histogram)
	for i := 0; i+ngramLen <= len(s); i++ {
		h[crc32.ChecksumIEEE([]byte(s[i:i+ngramLen]))&(histogramBuckets-1)]++
	}
	p.histograms[s] = h
	return h
}

// LowerBound estimates the edit distance between a and b in constant time
// from their histograms. It never exceeds the true Levenshtein distance: one
// insertion, deletion or substitution touches at most 4 windows, removing up
// to 4 and adding up to 4, so each edit moves the L1 distance by at most 8.
//
// It underestimates badly for large transpositions and bucket collisions,
// which is fine for pruning.
func (p *Profiler) LowerBound(a, b string) int {
	ha, hb := p.Histogram(a), p.Histogram(b)
	sum := 0
	for i := range ha {
		d := ha[i] - hb[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / (2 * ngramLen)
}

// Digest returns a stable 20-hex-character identifier derived from the
// histogram of s. It is used for display ids and shard prefixes only.
func (p *Profiler) Digest(s string) string {
	sum := sha1.Sum([]byte(fmt.Sprint(p.Histogram(s)[:])))
	return hex.EncodeToString(sum[:])[:20]
}

// Len returns the number of memoized histograms.
func (p *Profiler) Len() int {
	return len(p.histograms)
}
