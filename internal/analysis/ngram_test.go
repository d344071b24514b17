package analysis

import (
	"math/rand"
	"testing"

	"github.com/kiranshivaraju/triage/pkg/editdist"
)

func TestProfiler_HistogramShortString(t *testing.T) {
	p := NewProfiler()
	h := p.Histogram("abc")
	for i, n := range h {
		if n != 0 {
			t.Fatalf("bucket %d = %d, expected empty histogram for string shorter than a window", i, n)
		}
	}
}

func TestProfiler_HistogramCountsWindows(t *testing.T) {
	p := NewProfiler()
	s := "connection refused"
	total := 0
	for _, n := range p.Histogram(s) {
		total += n
	}
	if want := len(s) - ngramLen + 1; total != want {
		t.Errorf("expected %d windows, got %d", want, total)
	}
}

func TestProfiler_Memoizes(t *testing.T) {
	p := NewProfiler()
	first := p.Histogram("timeout waiting for pod")
	second := p.Histogram("timeout waiting for pod")
	if first != second {
		t.Error("expected the same memoized histogram")
	}
	if p.Len() != 1 {
		t.Errorf("expected 1 memoized entry, got %d", p.Len())
	}
}

func TestProfiler_LowerBoundSelf(t *testing.T) {
	p := NewProfiler()
	if d := p.LowerBound("exit status 1", "exit status 1"); d != 0 {
		t.Errorf("expected 0 for identical strings, got %d", d)
	}
}

func TestProfiler_LowerBoundNeverExceedsDistance(t *testing.T) {
	p := NewProfiler()
	rng := rand.New(rand.NewSource(7))
	const alphabet = "abcdefgh \n:"

	randomText := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return string(b)
	}

	for i := 0; i < 500; i++ {
		a := randomText(rng.Intn(60))
		b := []byte(a)
		for edits := rng.Intn(8); edits > 0 && len(b) > 0; edits-- {
			b[rng.Intn(len(b))] = alphabet[rng.Intn(len(alphabet))]
		}
		if rng.Intn(3) == 0 {
			b = append(b, randomText(rng.Intn(10))...)
		}

		bound := p.LowerBound(a, string(b))
		dist := editdist.Levenshtein(a, string(b))
		if bound > dist {
			t.Fatalf("lower bound %d exceeds distance %d for %q vs %q", bound, dist, a, string(b))
		}
	}
}

func TestProfiler_Digest(t *testing.T) {
	p := NewProfiler()
	d := p.Digest("connection refused to UNIQ1")

	if len(d) != 20 {
		t.Fatalf("expected 20 hex chars, got %d: %s", len(d), d)
	}
	for _, c := range d {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Fatalf("digest contains non-lowercase-hex char: %c", c)
		}
	}
	if again := NewProfiler().Digest("connection refused to UNIQ1"); again != d {
		t.Errorf("digest not stable across profilers: %s vs %s", d, again)
	}
	if other := p.Digest("timeout waiting for response"); other == d {
		t.Error("different texts should have different digests")
	}
}
