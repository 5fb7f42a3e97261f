package template

import (
	"strings"

	"github.com/bamlgo/baml/internal/bamlerr"
)

type segKind int

const (
	segText segKind = iota
	segExpr // {{ ... }}
	segTag  // {% ... %}
)

type segment struct {
	kind segKind
	raw  string // trimmed inner content for expr/tag; full text for segText
	span bamlerr.Span
}

// scan splits raw template source into text/expr/tag segments, tracking
// line numbers for spans (file/line mapping back to the original
// raw-string source is layered on by the caller via ast.DedentResult).
func scan(file, src string) []segment {
	var segs []segment
	line := 1
	i := 0
	textStart := 0
	flushText := func(end int) {
		if end > textStart {
			segs = append(segs, segment{kind: segText, raw: src[textStart:end], span: bamlerr.Span{File: file, StartLine: line}})
		}
	}
	for i < len(src) {
		if strings.HasPrefix(src[i:], "{{") {
			flushText(i)
			end := strings.Index(src[i:], "}}")
			if end < 0 {
				segs = append(segs, segment{kind: segExpr, raw: src[i+2:], span: bamlerr.Span{File: file, StartLine: line}})
				i = len(src)
				break
			}
			inner := strings.TrimSpace(src[i+2 : i+end])
			segs = append(segs, segment{kind: segExpr, raw: inner, span: bamlerr.Span{File: file, StartLine: line}})
			line += strings.Count(src[i:i+end+2], "\n")
			i += end + 2
			textStart = i
			continue
		}
		if strings.HasPrefix(src[i:], "{%") {
			flushText(i)
			end := strings.Index(src[i:], "%}")
			if end < 0 {
				segs = append(segs, segment{kind: segTag, raw: src[i+2:], span: bamlerr.Span{File: file, StartLine: line}})
				i = len(src)
				break
			}
			inner := strings.TrimSpace(src[i+2 : i+end])
			segs = append(segs, segment{kind: segTag, raw: inner, span: bamlerr.Span{File: file, StartLine: line}})
			line += strings.Count(src[i:i+end+2], "\n")
			i += end + 2
			textStart = i
			continue
		}
		if src[i] == '\n' {
			line++
		}
		i++
	}
	flushText(len(src))
	return segs
}

// Parse parses a dedented template body into a Node sequence.
func Parse(file, src string, diags *bamlerr.Diagnostics) []Node {
	segs := scan(file, src)
	nodes, _ := parseNodes(segs, 0, diags, "")
	return nodes
}

// parseNodes parses a flat segment run into a Node tree, stopping when it
// encounters a tag in stopAt (used to recognize elif/else/endif/endfor as
// the end of the current block) or running off the end of segs.
func parseNodes(segs []segment, idx int, diags *bamlerr.Diagnostics, stopAt string) ([]Node, int) {
	var out []Node
	for idx < len(segs) {
		s := segs[idx]
		switch s.kind {
		case segText:
			out = append(out, Node{Kind: NodeText, Text: s.raw, Span: s.span})
			idx++
		case segExpr:
			out = append(out, Node{Kind: NodeExpr, Expr: s.raw, Span: s.span})
			idx++
		case segTag:
			word, rest := firstWord(s.raw)
			if stopAt != "" && isStopTag(word, stopAt) {
				return out, idx
			}
			switch word {
			case "if":
				node, next := parseIf(segs, idx, rest, diags)
				out = append(out, node)
				idx = next
			case "for":
				node, next := parseFor(segs, idx, rest, diags)
				out = append(out, node)
				idx = next
			case "set":
				name, expr := parseSetClause(rest)
				out = append(out, Node{Kind: NodeSet, VarName: name, Expr: expr, Span: s.span})
				idx++
			default:
				diags.PushError(bamlerr.At(bamlerr.TemplateError, s.span, "unknown template tag %q", word))
				idx++
			}
		}
	}
	return out, idx
}

func isStopTag(word, stopAt string) bool {
	for _, s := range strings.Split(stopAt, "|") {
		if s == word {
			return true
		}
	}
	return false
}

func firstWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func parseSetClause(rest string) (name, expr string) {
	parts := strings.SplitN(rest, "=", 2)
	if len(parts) != 2 {
		return strings.TrimSpace(rest), ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func parseIf(segs []segment, idx int, cond string, diags *bamlerr.Diagnostics) (Node, int) {
	span := segs[idx].span
	idx++ // consume "if" tag
	thenBody, idx := parseNodes(segs, idx, diags, "elif|else|endif")
	node := Node{Kind: NodeIf, Expr: cond, Then: thenBody, Span: span}
	for idx < len(segs) && segs[idx].kind == segTag {
		word, rest := firstWord(segs[idx].raw)
		if word == "elif" {
			elifSpan := segs[idx].span
			idx++
			body, next := parseNodes(segs, idx, diags, "elif|else|endif")
			node.Elifs = append(node.Elifs, ElifClause{Cond: rest, Body: body, Span: elifSpan})
			idx = next
			continue
		}
		if word == "else" {
			idx++
			body, next := parseNodes(segs, idx, diags, "endif")
			node.Else = body
			idx = next
		}
		break
	}
	if idx < len(segs) && segs[idx].kind == segTag {
		if w, _ := firstWord(segs[idx].raw); w == "endif" {
			idx++
		} else {
			diags.PushError(bamlerr.At(bamlerr.TemplateError, segs[idx].span, "expected {%% endif %%}, found %q", segs[idx].raw))
		}
	} else {
		diags.PushError(bamlerr.At(bamlerr.TemplateError, span, "unterminated {%% if %%}"))
	}
	return node, idx
}

func parseFor(segs []segment, idx int, rest string, diags *bamlerr.Diagnostics) (Node, int) {
	span := segs[idx].span
	idx++ // consume "for" tag
	varName, iterExpr := parseForClause(rest, span, diags)
	body, next := parseNodes(segs, idx, diags, "endfor")
	idx = next
	if idx < len(segs) && segs[idx].kind == segTag {
		if w, _ := firstWord(segs[idx].raw); w == "endfor" {
			idx++
		} else {
			diags.PushError(bamlerr.At(bamlerr.TemplateError, segs[idx].span, "expected {%% endfor %%}, found %q", segs[idx].raw))
		}
	} else {
		diags.PushError(bamlerr.At(bamlerr.TemplateError, span, "unterminated {%% for %%}"))
	}
	return Node{Kind: NodeFor, VarName: varName, Expr: iterExpr, Then: body, Span: span}, idx
}

func parseForClause(rest string, span bamlerr.Span, diags *bamlerr.Diagnostics) (string, string) {
	parts := strings.SplitN(rest, " in ", 2)
	if len(parts) != 2 {
		diags.PushError(bamlerr.At(bamlerr.TemplateError, span, "malformed for-loop clause %q, expected 'x in expr'", rest))
		return "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
