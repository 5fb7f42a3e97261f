package ast

import "strings"

// DedentResult is a dedented raw-string body plus the mapping needed to
// translate a position in the cooked (dedented) text back to a line/column
// in the original raw-string source, so diagnostics raised from inside a
// dedented body (or, later, from the template type-checker walking it)
// report correct source spans.
type DedentResult struct {
	Text string
	// LineOffsets[i] is the 0-based line number in the ORIGINAL raw string
	// that cooked line i came from.
	LineOffsets []int
}

// Dedent implements the raw-string dedent algorithm: the greatest
// common leading-whitespace prefix across non-empty lines is stripped, and
// a single surrounding blank line at either end is removed.
func Dedent(raw string) DedentResult {
	lines := strings.Split(raw, "\n")

	// Strip one leading and one trailing blank line, tracking the original
	// line index each surviving line came from.
	start, end := 0, len(lines)
	if start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	kept := lines[start:end]
	origIdx := make([]int, len(kept))
	for i := range kept {
		origIdx[i] = start + i
	}

	prefix := commonLeadingWhitespace(kept)
	out := make([]string, len(kept))
	for i, l := range kept {
		if strings.TrimSpace(l) == "" {
			out[i] = ""
			continue
		}
		out[i] = strings.TrimPrefix(l, prefix)
	}

	return DedentResult{
		Text:        strings.Join(out, "\n"),
		LineOffsets: origIdx,
	}
}

// commonLeadingWhitespace returns the longest whitespace prefix shared by
// every non-empty line.
func commonLeadingWhitespace(lines []string) string {
	var prefix string
	set := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lead := leadingWhitespace(l)
		if !set {
			prefix = lead
			set = true
			continue
		}
		prefix = commonPrefix(prefix, lead)
	}
	return prefix
}

func leadingWhitespace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[:i]
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// LineForCooked maps a 0-based cooked line number back to the original
// raw-string line number it was dedented from.
func (d DedentResult) LineForCooked(cookedLine int) int {
	if cookedLine < 0 || cookedLine >= len(d.LineOffsets) {
		return cookedLine
	}
	return d.LineOffsets[cookedLine]
}
