package coerce

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// candidate is one JSON-ish fragment found in free-form text, together
// with the repaired text gjson actually parsed (so scoring can note when
// repair was necessary).
type candidate struct {
	result  gjson.Result
	repaired bool
}

var fencedCodeBlock = regexp.MustCompile("(?s)```(?:json|jsonc)?\\s*(.*?)```")
var bareKeyPattern = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_\-]*)(\s*:)`)
var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// extract returns every JSON-shaped candidate found in text: first a
// strict whole-text parse, then (if that fails, or in addition) a sweep
// over fenced code blocks and balanced bracket spans with light repair.
func extract(text string) []candidate {
	if gjson.Valid(text) {
		return []candidate{{result: gjson.Parse(text)}}
	}

	var out []candidate
	seen := map[string]bool{}
	add := func(raw string, repaired bool) {
		raw = strings.TrimSpace(raw)
		if raw == "" || seen[raw] {
			return
		}
		fixed := repairJSON(raw)
		if !gjson.Valid(fixed) {
			return
		}
		seen[raw] = true
		out = append(out, candidate{result: gjson.Parse(fixed), repaired: repaired || fixed != raw})
	}

	for _, m := range fencedCodeBlock.FindAllStringSubmatch(text, -1) {
		add(m[1], false)
	}

	for _, span := range balancedSpans(text) {
		add(span, false)
	}

	return out
}

// repairJSON applies permissive fixups: unquoted keys get quotes,
// trailing commas before a closing bracket are dropped.
func repairJSON(s string) string {
	s = bareKeyPattern.ReplaceAllString(s, `$1"$2"$3`)
	s = trailingComma.ReplaceAllString(s, `$1`)
	return s
}

// balancedSpans scans text for every top-level balanced {...} or [...]
// run, respecting nested brackets and quoted strings, yielding candidates
// for "leading prose" and "multiple top-level values" inputs.
func balancedSpans(text string) []string {
	var out []string
	depth := 0
	start := -1
	var openStack []byte
	inStr := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			if depth == 0 {
				start = i
			}
			openStack = append(openStack, c)
			depth++
		case '}', ']':
			if depth == 0 {
				continue
			}
			depth--
			if len(openStack) > 0 {
				openStack = openStack[:len(openStack)-1]
			}
			if depth == 0 && start >= 0 {
				out = append(out, text[start:i+1])
				start = -1
			}
		}
	}
	return out
}
