package ast

import (
	"github.com/bamlgo/baml/internal/bamlerr"
)

// Parser is a recursive-descent parser over a pre-lexed token stream,
// producing a File of top-level Items plus accumulated diagnostics.
type Parser struct {
	file  string
	toks  []Token
	pos   int
	diags *bamlerr.Diagnostics
}

// Parse lexes and parses one .baml source file.
func Parse(file, src string) (*File, *bamlerr.Diagnostics) {
	diags := &bamlerr.Diagnostics{}
	lx := NewLexer(file, src, diags)
	toks := lx.Tokenize()
	p := &Parser{file: file, toks: toks, diags: diags}
	items := p.parseItems()
	return &File{Path: file, Items: items}, diags
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) atEOF() bool { return p.cur().Kind == TokEOF }

func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) isSymbol(s string) bool {
	return p.cur().Kind == TokSymbol && p.cur().Text == s
}

func (p *Parser) isKeyword(kw string) bool {
	return p.cur().Kind == TokIdent && p.cur().Text == kw
}

func (p *Parser) expectSymbol(s string) bamlerr.Span {
	if !p.isSymbol(s) {
		p.errf("expected %q, found %q", s, p.cur().Text)
		return p.cur().Span
	}
	return p.advance().Span
}

func (p *Parser) expectIdent() (string, bamlerr.Span) {
	if p.cur().Kind != TokIdent {
		p.errf("expected identifier, found %q", p.cur().Text)
		return "", p.cur().Span
	}
	t := p.advance()
	return t.Text, t.Span
}

func (p *Parser) errf(format string, args ...any) {
	p.diags.PushError(bamlerr.At(bamlerr.ParseError, p.cur().Span, format, args...))
}

// synchronize skips tokens until the next top-level keyword or EOF, used to
// recover after a malformed item so the rest of the file still parses.
func (p *Parser) synchronize() {
	for !p.atEOF() {
		if p.cur().Kind == TokIdent {
			switch p.cur().Text {
			case "enum", "class", "function", "client", "retry_policy", "template_string", "test":
				return
			}
		}
		p.advance()
	}
}

func (p *Parser) parseItems() []Item {
	var items []Item
	for !p.atEOF() {
		before := p.pos
		item := p.parseItem()
		if item != nil {
			items = append(items, item)
		}
		if p.pos == before {
			// Guard against an infinite loop on unparseable input.
			p.errf("unexpected token %q at top level", p.cur().Text)
			p.advance()
			p.synchronize()
		}
	}
	return items
}

func (p *Parser) parseItem() Item {
	switch {
	case p.isKeyword("enum"):
		return p.parseEnum()
	case p.isKeyword("class"):
		return p.parseClass()
	case p.isKeyword("function"):
		return p.parseFunction()
	case p.isKeyword("client"):
		return p.parseClient()
	case p.isKeyword("retry_policy"):
		return p.parseRetryPolicy()
	case p.isKeyword("template_string"):
		return p.parseTemplateString()
	case p.isKeyword("test"):
		return p.parseTest()
	default:
		p.errf("unexpected token %q, expected a top-level declaration", p.cur().Text)
		p.synchronize()
		return nil
	}
}

// ---- enum ----

func (p *Parser) parseEnum() Item {
	start := p.advance().Span // "enum"
	name, _ := p.expectIdent()
	p.expectSymbol("{")
	var values []EnumValue
	for !p.isSymbol("}") && !p.atEOF() {
		vname, vspan := p.expectIdent()
		attrs := p.parseAttributes()
		values = append(values, EnumValue{Name: vname, Attrs: attrs, Span: vspan})
	}
	p.expectSymbol("}")
	return &EnumDecl{Name: name, Values: values, Span: start}
}

// ---- class ----

func (p *Parser) parseClass() Item {
	start := p.advance().Span // "class"
	name, _ := p.expectIdent()
	p.expectSymbol("{")
	var fields []FieldDecl
	for !p.isSymbol("}") && !p.atEOF() {
		fname, fspan := p.expectIdent()
		typeExpr := p.parseTypeExprText()
		attrs := p.parseAttributes()
		fields = append(fields, FieldDecl{Name: fname, TypeExpr: typeExpr, Attrs: attrs, Span: fspan})
	}
	p.expectSymbol("}")
	return &ClassDecl{Name: name, Fields: fields, Span: start}
}

// parseTypeExprText consumes a type-expression token run and reconstructs
// its textual form, which internal/types.ParseType parses independently —
// the AST layer owns tokenizing where a type expression starts and ends;
// the grammar of the expression itself is shared with internal/types so
// it is implemented exactly once.
func (p *Parser) parseTypeExprText() string {
	var out []byte
	depth := 0
	for {
		t := p.cur()
		if t.Kind == TokEOF {
			break
		}
		if t.Kind == TokSymbol {
			switch t.Text {
			case "(", "[", "<":
				depth++
			case ")", "]", ">":
				if depth == 0 {
					goto done
				}
				depth--
			case "@":
				if depth == 0 {
					goto done
				}
			case "{", "}", ",", ";":
				if depth == 0 {
					goto done
				}
			}
		}
		if t.Kind == TokIdent && depth == 0 && out != nil {
			// A bare identifier at depth 0 after the type has already
			// started ends the type expression (start of the next field).
			switch t.Text {
			case "string", "int", "float", "bool", "null", "image", "audio", "map", "true", "false":
				// still part of the type grammar (e.g. map<...>), fall through.
			default:
				if !looksLikeTypeContinuation(out) {
					goto done
				}
			}
		}
		out = append(out, []byte(t.Text)...)
		if t.Kind == TokSymbol && (t.Text == "," || t.Text == ":") {
			out = append(out, ' ')
		}
		p.advance()
	}
done:
	return string(out)
}

// looksLikeTypeContinuation reports whether the text accumulated so far
// ends in a token that expects another type atom next (union `|`, a
// dangling `map<` awaiting its key, etc.) rather than being complete.
func looksLikeTypeContinuation(out []byte) bool {
	if len(out) == 0 {
		return true
	}
	last := out[len(out)-1]
	return last == '|' || last == '<' || last == ' '
}

// ---- attributes ----

func (p *Parser) parseAttributes() []Attribute {
	var attrs []Attribute
	for p.isSymbol("@") {
		start := p.advance().Span
		name, _ := p.expectIdent()
		var args []*Expression
		if p.isSymbol("(") {
			p.advance()
			for !p.isSymbol(")") && !p.atEOF() {
				args = append(args, p.parseExpr())
				if p.isSymbol(",") {
					p.advance()
				}
			}
			p.expectSymbol(")")
		}
		if (name == "check" || name == "assert") && len(args) >= 2 {
			args[1] = &Expression{Kind: ExprJinja, Str: args[1].Str, Span: args[1].Span}
		}
		attrs = append(attrs, Attribute{Name: name, Args: args, Span: start})
	}
	return attrs
}

// ---- expressions ----

func (p *Parser) parseExpr() *Expression {
	t := p.cur()
	switch {
	case t.Kind == TokInt:
		p.advance()
		return &Expression{Kind: ExprInt, Int: t.Int, Span: t.Span}
	case t.Kind == TokFloat:
		p.advance()
		return &Expression{Kind: ExprFloat, Float: t.Float, Span: t.Span}
	case t.Kind == TokString:
		p.advance()
		return &Expression{Kind: ExprString, Str: t.Text, Span: t.Span}
	case t.Kind == TokRawString:
		p.advance()
		return &Expression{Kind: ExprRawString, Str: t.Text, Span: t.Span}
	case t.Kind == TokIdent && t.Text == "true":
		p.advance()
		return &Expression{Kind: ExprBool, Bool: true, Span: t.Span}
	case t.Kind == TokIdent && t.Text == "false":
		p.advance()
		return &Expression{Kind: ExprBool, Bool: false, Span: t.Span}
	case t.Kind == TokIdent && t.Text == "null":
		p.advance()
		return &Expression{Kind: ExprNull, Span: t.Span}
	case t.Kind == TokIdent && t.Text == "env":
		p.advance()
		p.expectSymbol(".")
		name, _ := p.expectIdent()
		return &Expression{Kind: ExprEnvVar, Path: []string{name}, Span: t.Span}
	case t.Kind == TokIdent:
		path := []string{p.advance().Text}
		for p.isSymbol(".") {
			p.advance()
			seg, _ := p.expectIdent()
			path = append(path, seg)
		}
		return &Expression{Kind: ExprIdent, Path: path, Span: t.Span}
	case t.Kind == TokSymbol && t.Text == "[":
		return p.parseArrayLit()
	case t.Kind == TokSymbol && t.Text == "{":
		return p.parseMapLit()
	default:
		p.errf("unexpected token %q in expression", t.Text)
		p.advance()
		return &Expression{Kind: ExprNull, Span: t.Span}
	}
}

func (p *Parser) parseArrayLit() *Expression {
	start := p.advance().Span // "["
	var items []*Expression
	for !p.isSymbol("]") && !p.atEOF() {
		items = append(items, p.parseExpr())
		if p.isSymbol(",") {
			p.advance()
		}
	}
	p.expectSymbol("]")
	return &Expression{Kind: ExprArray, Items: items, Span: start}
}

func (p *Parser) parseMapLit() *Expression {
	start := p.advance().Span // "{"
	var entries []MapEntry
	for !p.isSymbol("}") && !p.atEOF() {
		key, _ := p.expectIdent()
		if p.isSymbol(":") {
			p.advance()
		}
		val := p.parseExpr()
		entries = append(entries, MapEntry{Key: key, Value: val})
		if p.isSymbol(",") {
			p.advance()
		}
	}
	p.expectSymbol("}")
	return &Expression{Kind: ExprMap, MapEntries: entries, Span: start}
}

// ---- function ----

func (p *Parser) parseFunction() Item {
	start := p.advance().Span // "function"
	name, _ := p.expectIdent()
	p.expectSymbol("(")
	var inputs []Param
	for !p.isSymbol(")") && !p.atEOF() {
		pname, pspan := p.expectIdent()
		p.expectSymbol(":")
		ptype := p.parseTypeExprText()
		inputs = append(inputs, Param{Name: pname, TypeExpr: ptype, Span: pspan})
		if p.isSymbol(",") {
			p.advance()
		}
	}
	p.expectSymbol(")")
	p.expectArrow()
	output := p.parseTypeExprText()

	p.expectSymbol("{")
	var client string
	var prompt string
	var promptSpan bamlerr.Span
	var attrs []Attribute
	for !p.isSymbol("}") && !p.atEOF() {
		switch {
		case p.isKeyword("client"):
			p.advance()
			client, _ = p.expectIdent()
		case p.isKeyword("prompt"):
			p.advance()
			if p.cur().Kind == TokRawString || p.cur().Kind == TokString {
				t := p.advance()
				prompt = t.Text
				promptSpan = t.Span
			}
		case p.isSymbol("@"):
			attrs = append(attrs, p.parseAttributes()...)
		default:
			p.errf("unexpected token %q in function body", p.cur().Text)
			p.advance()
		}
	}
	p.expectSymbol("}")
	return &FunctionDecl{
		Name: name, Inputs: inputs, Output: output, Client: client,
		Prompt: prompt, PromptSp: promptSpan, Attrs: attrs, Span: start,
	}
}

// expectArrow consumes the `->` token pair (lexed as two `-`/`>` symbols).
func (p *Parser) expectArrow() {
	if p.isSymbol("-") {
		p.advance()
		if p.isSymbol(">") {
			p.advance()
			return
		}
	}
	p.errf("expected '->', found %q", p.cur().Text)
}

// ---- client ----

func (p *Parser) parseClient() Item {
	start := p.advance().Span // "client"
	if p.isSymbol("<") {
		p.advance()
		p.expectIdent() // generic marker, e.g. "llm"
		p.expectSymbol(">")
	}
	name, _ := p.expectIdent()
	p.expectSymbol("{")
	decl := &ClientDecl{Name: name, Options: map[string]*Expression{}, Span: start}
	for !p.isSymbol("}") && !p.atEOF() {
		switch {
		case p.isKeyword("provider"):
			p.advance()
			decl.Provider, _ = p.expectIdent()
		case p.isKeyword("retry_policy"):
			p.advance()
			decl.RetryPolicy, _ = p.expectIdent()
		case p.isKeyword("options"):
			p.advance()
			p.expectSymbol("{")
			for !p.isSymbol("}") && !p.atEOF() {
				key, _ := p.expectIdent()
				val := p.parseExpr()
				decl.Options[key] = val
				decl.OptionOrder = append(decl.OptionOrder, key)
			}
			p.expectSymbol("}")
		default:
			p.errf("unexpected token %q in client body", p.cur().Text)
			p.advance()
		}
	}
	p.expectSymbol("}")
	return decl
}

// ---- retry_policy ----

func (p *Parser) parseRetryPolicy() Item {
	start := p.advance().Span // "retry_policy"
	name, _ := p.expectIdent()
	p.expectSymbol("{")
	decl := &RetryPolicyDecl{Name: name, Span: start}
	for !p.isSymbol("}") && !p.atEOF() {
		switch {
		case p.isKeyword("max_retries"):
			p.advance()
			decl.MaxRetries = p.parseExpr().Int
		case p.isKeyword("strategy"):
			p.advance()
			p.expectSymbol("{")
			for !p.isSymbol("}") && !p.atEOF() {
				key, _ := p.expectIdent()
				val := p.parseExpr()
				switch key {
				case "type":
					decl.Strategy.Type = joinIdentPath(val)
				case "delay_ms":
					decl.Strategy.DelayMs = val.Int
				case "multiplier":
					decl.Strategy.Multiplier = numericValue(val)
				case "max_delay_ms":
					decl.Strategy.MaxDelayMs = val.Int
				}
			}
			p.expectSymbol("}")
		default:
			p.errf("unexpected token %q in retry_policy body", p.cur().Text)
			p.advance()
		}
	}
	p.expectSymbol("}")
	return decl
}

func joinIdentPath(e *Expression) string {
	if e.Kind == ExprIdent && len(e.Path) > 0 {
		out := e.Path[0]
		for _, seg := range e.Path[1:] {
			out += "." + seg
		}
		return out
	}
	return e.Str
}

func numericValue(e *Expression) float64 {
	switch e.Kind {
	case ExprInt:
		return float64(e.Int)
	case ExprFloat:
		return e.Float
	default:
		return 0
	}
}

// ---- template_string ----

func (p *Parser) parseTemplateString() Item {
	start := p.advance().Span // "template_string"
	name, _ := p.expectIdent()
	p.expectSymbol("(")
	var params []Param
	for !p.isSymbol(")") && !p.atEOF() {
		pname, pspan := p.expectIdent()
		p.expectSymbol(":")
		ptype := p.parseTypeExprText()
		params = append(params, Param{Name: pname, TypeExpr: ptype, Span: pspan})
		if p.isSymbol(",") {
			p.advance()
		}
	}
	p.expectSymbol(")")
	var body string
	if p.cur().Kind == TokRawString || p.cur().Kind == TokString {
		body = p.advance().Text
	} else {
		p.errf("expected template body, found %q", p.cur().Text)
	}
	return &TemplateStringDecl{Name: name, Params: params, Body: body, Span: start}
}

// ---- test ----

func (p *Parser) parseTest() Item {
	start := p.advance().Span // "test"
	name, _ := p.expectIdent()
	p.expectSymbol("{")
	decl := &TestCaseDecl{Name: name, Args: map[string]*Expression{}, Span: start}
	for !p.isSymbol("}") && !p.atEOF() {
		switch {
		case p.isKeyword("functions"):
			p.advance()
			arr := p.parseArrayLit()
			if len(arr.Items) > 0 {
				decl.FunctionName = joinIdentPath(arr.Items[0])
			}
		case p.isKeyword("function"):
			p.advance()
			decl.FunctionName, _ = p.expectIdent()
		case p.isKeyword("args"):
			p.advance()
			p.expectSymbol("{")
			for !p.isSymbol("}") && !p.atEOF() {
				key, _ := p.expectIdent()
				val := p.parseExpr()
				decl.Args[key] = val
				decl.ArgOrder = append(decl.ArgOrder, key)
			}
			p.expectSymbol("}")
		default:
			p.errf("unexpected token %q in test body", p.cur().Text)
			p.advance()
		}
	}
	p.expectSymbol("}")
	return decl
}
