package render

import (
	"regexp"
	"unicode/utf8"
)

// Word runs and non-word runs, Unicode-aware.
var reToken = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_]+`)

// CommonSpans splits texts[0] into alternating runs of tokens shared by every
// text and tokens that are not, and returns the run lengths in runes. The
// first entry always describes a common run and may be 0.
func CommonSpans(texts []string) []int {
	if len(texts) == 0 {
		return []int{}
	}

	var common map[string]struct{}
	for _, text := range texts {
		tokens := reToken.FindAllString(text, -1)
		if common == nil {
			common = make(map[string]struct{}, len(tokens))
			for _, tok := range tokens {
				common[tok] = struct{}{}
			}
			continue
		}
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			seen[tok] = struct{}{}
		}
		for tok := range common {
			if _, ok := seen[tok]; !ok {
				delete(common, tok)
			}
		}
	}

	spans := []int{}
	matching := true
	run := 0
	for _, tok := range reToken.FindAllString(texts[0], -1) {
		_, isCommon := common[tok]
		if isCommon != matching {
			spans = append(spans, run)
			run = 0
			matching = isCommon
		}
		run += utf8.RuneCountInString(tok)
	}
	if run > 0 {
		spans = append(spans, run)
	}
	return spans
}
