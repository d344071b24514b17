package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommonSpans(t *testing.T) {
	tests := []struct {
		name     string
		texts    []string
		expected []int
	}{
		{
			name:     "exact match is one span",
			texts:    []string{"an exact match", "an exact match"},
			expected: []int{14},
		},
		{
			name:     "differing middle word",
			texts:    []string{"some example string", "some other string"},
			expected: []int{5, 7, 7},
		},
		{
			name:     "leading uncommon token starts with empty common run",
			texts:    []string{"foo bar", "baz bar"},
			expected: []int{0, 3, 4},
		},
		{
			name:     "lengths counted in runes",
			texts:    []string{"héllo wörld", "héllo there"},
			expected: []int{6, 5},
		},
		{
			name:     "single text",
			texts:    []string{"just one"},
			expected: []int{8},
		},
		{
			name:     "empty text",
			texts:    []string{""},
			expected: []int{},
		},
		{
			name:     "no texts",
			texts:    nil,
			expected: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CommonSpans(tt.texts))
		})
	}
}

func TestCommonSpans_SumsToRuneLength(t *testing.T) {
	texts := []string{
		"error: pod web-1 failed on node-a after 30s",
		"error: pod web-2 failed on node-b after 31s",
		"error: pod db-1 failed on node-a after 30s",
	}
	total := 0
	for _, n := range CommonSpans(texts) {
		total += n
	}
	assert.Equal(t, len([]rune(texts[0])), total)
}
