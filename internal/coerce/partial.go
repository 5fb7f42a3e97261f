package coerce

import (
	"regexp"
	"strings"

	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/types"
	"github.com/bamlgo/baml/internal/value"
	"github.com/tidwall/gjson"
)

// leadingNumber matches a complete JSON number token at the start of a
// string (used to tell whether a trailing list element could still be
// growing mid-stream).
var leadingNumber = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][+-]?\d+)?`)

// tryPartialList implements the partial-streaming rule for an
// unterminated top-level JSON array targeting List<E>. CoerceText calls it
// before extraction; it applies only when the whole text is not valid JSON
// (checked here) and looks like `[` followed by a comma-separated run with
// no closing `]`. The in-flight last element is
// dropped unless something definitively ends it (trailing non-numeric
// content after a complete numeric token, e.g. a comment).
func tryPartialList(text string, t *types.Type, irepr *ir.IntermediateRepr, opts Options) (*Value, bool) {
	base := types.Base(t)
	if base.Shape != types.ShapeList {
		return nil, false
	}
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	if gjson.Valid(trimmed) {
		return nil, false // whole thing is valid JSON; let the normal path handle it
	}
	inner := trimmed[1:]
	if strings.HasSuffix(strings.TrimSpace(inner), "]") {
		return nil, false // closed but otherwise invalid — not a partial-array case
	}
	segs := splitTopLevelComma(inner)
	if len(segs) == 0 {
		return &Value{Kind: value.KindList, List: []*Value{}}, true
	}
	complete := segs[:len(segs)-1]
	last := strings.TrimSpace(segs[len(segs)-1])

	var out []*Value
	for _, seg := range complete {
		seg = strings.TrimSpace(seg)
		if seg == "" || !gjson.Valid(seg) {
			continue
		}
		v, _, err := coerceValue(gjson.Parse(seg), base.Elem, irepr, opts)
		if err == nil {
			out = append(out, v)
		}
	}

	if keepPartialTail(last) {
		candidate := leadingNumber.FindString(last)
		if candidate == "" {
			candidate = last
		}
		if gjson.Valid(candidate) {
			if v, _, err := coerceValue(gjson.Parse(candidate), base.Elem, irepr, opts); err == nil {
				out = append(out, v)
			}
		}
	}

	if out == nil {
		out = []*Value{}
	}
	return &Value{Kind: value.KindList, List: out}, true
}

// keepPartialTail reports whether the final, unterminated element is
// "done growing": a bare numeric token flush against end-of-input might
// still gain digits from the next stream chunk and is dropped; one
// followed by trailing content (whitespace, a comment) has definitively
// stopped growing and is kept.
func keepPartialTail(seg string) bool {
	if seg == "" {
		return false
	}
	m := leadingNumber.FindString(seg)
	if m == "" {
		// Non-numeric tail (string/object/array): only keep if it's
		// already a complete, valid JSON value on its own.
		return gjson.Valid(seg)
	}
	return len(m) != len(seg)
}

// splitTopLevelComma splits on commas at bracket/brace/string depth 0.
func splitTopLevelComma(s string) []string {
	var out []string
	depth := 0
	inStr := false
	escaped := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
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
			depth++
		case '}', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}
