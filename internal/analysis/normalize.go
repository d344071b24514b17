package analysis

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Normalization regexes compiled once at package init.
var (
	// RFC 2822-ish dates, Go/glog "Jan _2 15:04:05.000000" stamps and
	// ISO-ish "2006-01-02T15:04:05" stamps.
	reDatetime = regexp.MustCompile(
		`[A-Z][a-z]{2}, \d+ \w+ 2\d{3} [\d./: ]*([-+]\d+)?` +
			`|\w{3}\s+\d{1,2} \d+:\d+:\d+(\.\d+)?` +
			`|(\d{4}-\d\d-\d\d.|.\d{4} )\d\d:\d\d:\d\d(.\d+)?`)

	// Go prints maps in random order.
	reGoMap = regexp.MustCompile(`map\[([^\]\[]*)\]`)

	// Noisy substrings renumbered to UNIQn. The node-name alternative
	// captures only the suffix; the pool prefix is kept.
	reOrdinal = regexp.MustCompile(`\b(?:` +
		`0x[0-9a-fA-F]+` +
		`|\d+\.\d+\.\d+\.\d+(?::\d+)?` +
		`|[0-9a-fA-F]{8}-\S{4}-\S{4}-\S{4}-\S{12}(?:-\d+)?` +
		`|[0-9a-f]{12,32}` +
		`|(?:minion-group-|default-pool-)([-0-9a-z]{4,})` +
		`)\b`)

	rePlaceholder = regexp.MustCompile(`\bUNIQ(\d+)\b`)

	reTestNameGroup = regexp.MustCompile(`\[.*?\]|\{.*?\}`)
	reWhitespace    = regexp.MustCompile(`\s+`)
)

const (
	// MaxNormalizedLen is the length above which repeated lines are
	// collapsed and, failing that, the middle of the text is dropped.
	MaxNormalizedLen = 10000

	truncationMarker = "\n...[truncated]...\n"
)

// NormalizeFailure rewrites a raw failure message into a canonical form with
// timestamps, addresses, identifiers and map ordering removed, so failures
// that differ only by incidental entropy compare equal or nearly equal.
// It is pure: placeholder numbering starts over on every call.
func NormalizeFailure(text string) string {
	text = canonicalize(text)
	if len(text) > MaxNormalizedLen {
		text = canonicalize(collapseRepeatedLines(text))
	}
	if len(text) > MaxNormalizedLen {
		head := truncateString(text, MaxNormalizedLen/2)
		text = head + truncationMarker + tailString(text, MaxNormalizedLen/2)
	}
	return text
}

// maxRewritePasses bounds canonicalize on pathological inputs.
const maxRewritePasses = 16

// canonicalize applies the rewrites until the text stops changing. One pass
// is not always enough: sorting a map body or replacing a timestamp can line
// up tokens that form a new timestamp.
func canonicalize(text string) string {
	for i := 0; i < maxRewritePasses; i++ {
		next := rewrite(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func rewrite(text string) string {
	text = reDatetime.ReplaceAllString(text, "TIME")
	text = sortGoMaps(text)
	text = renumberOrdinals(text)
	// Renumbering can reorder map entries that differ only by placeholder.
	return sortGoMaps(text)
}

// NormalizeTestName strips bracketed and braced tags such as "[Slow]" or
// "{Feature:X}" from a test name and collapses whitespace.
func NormalizeTestName(name string) string {
	name = reTestNameGroup.ReplaceAllString(name, "")
	name = reWhitespace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

func sortGoMaps(s string) string {
	if !strings.Contains(s, "map[") {
		return s
	}
	return reGoMap.ReplaceAllStringFunc(s, func(m string) string {
		fields := strings.Fields(m[len("map[") : len(m)-1])
		sort.Strings(fields)
		return "map[" + strings.Join(fields, " ") + "]"
	})
}

// renumberOrdinals alpha-converts every noisy substring into UNIQ1, UNIQ2, ...
// in order of first appearance. Repeats of a substring share a placeholder.
// Numbering continues after any placeholder already in s.
func renumberOrdinals(s string) string {
	matches := reOrdinal.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	next := 1
	for _, m := range rePlaceholder.FindAllStringSubmatch(s, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= next {
			next = n + 1
		}
	}

	placeholders := make(map[string]string)
	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if m[2] >= 0 {
			start = m[2]
		}
		tok := s[start:end]
		ph, ok := placeholders[tok]
		if !ok {
			ph = "UNIQ" + strconv.Itoa(next)
			placeholders[tok] = ph
			next++
		}
		b.WriteString(s[last:start])
		b.WriteString(ph)
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

// collapseRepeatedLines replaces each run of identical consecutive
// newline-terminated lines with a single copy. Blank lines are kept.
func collapseRepeatedLines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := ""
	for _, line := range strings.SplitAfter(s, "\n") {
		if line == prev && len(line) > 1 && strings.HasSuffix(line, "\n") {
			continue
		}
		b.WriteString(line)
		prev = line
	}
	return b.String()
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

// tailString returns at most the last maxBytes of s without splitting runes.
func tailString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	start := len(s) - maxBytes
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
