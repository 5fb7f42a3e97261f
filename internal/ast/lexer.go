package ast

import (
	"strconv"
	"strings"

	"github.com/bamlgo/baml/internal/bamlerr"
)

// TokKind enumerates lexical token kinds.
type TokKind int

const (
	TokEOF TokKind = iota
	TokIdent
	TokInt
	TokFloat
	TokString    // cooked "..."
	TokRawString // dedented #"..."#
	TokSymbol    // punctuation: { } ( ) [ ] < > , : | ? . @ = ; -
)

// Token is one lexical token with its source span.
type Token struct {
	Kind  TokKind
	Text  string
	Int   int64
	Float float64
	// Dedent carries the dedent/line-mapping result for TokRawString.
	Dedent DedentResult
	Span   bamlerr.Span
	// StartOffset/EndOffset are rune offsets into the source. The parser
	// does not read them: it rebuilds type-expression text from each
	// token's Text.
	StartOffset int
	EndOffset   int
}

// Lexer tokenizes .baml source text, tracking line/column for spans.
type Lexer struct {
	file string
	src  []rune
	pos  int
	line int // 1-based
	col  int // 1-based

	diags *bamlerr.Diagnostics
}

func NewLexer(file, src string, diags *bamlerr.Diagnostics) *Lexer {
	return &Lexer{file: file, src: []rune(src), pos: 0, line: 1, col: 1, diags: diags}
}

func (l *Lexer) here() bamlerr.Span {
	return bamlerr.Span{File: l.file, StartLine: l.line, StartCol: l.col, EndLine: l.line, EndCol: l.col}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

// Tokenize lexes the whole file into a token slice (including a trailing
// TokEOF), skipping whitespace and `//` line comments.
func (l *Lexer) Tokenize() []Token {
	var toks []Token
	for {
		l.skipTrivia()
		if l.pos >= len(l.src) {
			toks = append(toks, Token{Kind: TokEOF, Span: l.here(), StartOffset: l.pos, EndOffset: l.pos})
			return toks
		}
		start := l.here()
		startOff := l.pos
		r := l.peek()
		var tok Token
		switch {
		case r == '#' && l.peekAt(1) == '"':
			tok = l.lexRawString(start)
		case r == '"':
			tok = l.lexString(start)
		case isDigit(r):
			tok = l.lexNumber(start)
		case isIdentStart(r):
			tok = l.lexIdent(start)
		default:
			tok = l.lexSymbol(start)
		}
		tok.StartOffset = startOff
		tok.EndOffset = l.pos
		toks = append(toks, tok)
	}
}

func (l *Lexer) skipTrivia() {
	for l.pos < len(l.src) {
		r := l.peek()
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			l.advance()
			continue
		}
		if r == '/' && l.peekAt(1) == '/' {
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
			continue
		}
		break
	}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentCont(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}

func (l *Lexer) lexIdent(start bamlerr.Span) Token {
	s := l.pos
	for l.pos < len(l.src) && isIdentCont(l.peek()) {
		l.advance()
	}
	text := string(l.src[s:l.pos])
	end := l.here()
	start.EndLine, start.EndCol = end.StartLine, end.StartCol
	return Token{Kind: TokIdent, Text: text, Span: start}
}

func (l *Lexer) lexNumber(start bamlerr.Span) Token {
	s := l.pos
	isFloat := false
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
	}
	text := string(l.src[s:l.pos])
	end := l.here()
	start.EndLine, start.EndCol = end.StartLine, end.StartCol
	if isFloat {
		f, _ := strconv.ParseFloat(text, 64)
		return Token{Kind: TokFloat, Text: text, Float: f, Span: start}
	}
	n, _ := strconv.ParseInt(text, 10, 64)
	return Token{Kind: TokInt, Text: text, Int: n, Span: start}
}

// lexString lexes a cooked "..." string with \\, \", \n, \t escapes.
func (l *Lexer) lexString(start bamlerr.Span) Token {
	l.advance() // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) && l.peek() != '"' {
		r := l.advance()
		if r == '\\' && l.pos < len(l.src) {
			esc := l.advance()
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			default:
				sb.WriteRune(esc)
			}
			continue
		}
		sb.WriteRune(r)
	}
	if l.pos < len(l.src) {
		l.advance() // closing quote
	} else {
		l.diags.PushError(bamlerr.At(bamlerr.ParseError, start, "unterminated string literal"))
	}
	end := l.here()
	start.EndLine, start.EndCol = end.StartLine, end.StartCol
	return Token{Kind: TokString, Text: sb.String(), Span: start}
}

// lexRawString lexes a `#"…"#` raw string and dedents it,
// preserving an original-to-cooked position mapping.
func (l *Lexer) lexRawString(start bamlerr.Span) Token {
	l.advance() // '#'
	l.advance() // '"'
	s := l.pos
	for l.pos < len(l.src) {
		if l.peek() == '"' && l.peekAt(1) == '#' {
			break
		}
		l.advance()
	}
	raw := string(l.src[s:l.pos])
	if l.pos < len(l.src) {
		l.advance() // '"'
		l.advance() // '#'
	} else {
		l.diags.PushError(bamlerr.At(bamlerr.ParseError, start, "unterminated raw string literal"))
	}
	dedented := Dedent(raw)
	end := l.here()
	start.EndLine, start.EndCol = end.StartLine, end.StartCol
	return Token{Kind: TokRawString, Text: dedented.Text, Dedent: dedented, Span: start}
}

var symbolRunes = map[rune]bool{
	'{': true, '}': true, '(': true, ')': true, '[': true, ']': true,
	'<': true, '>': true, ',': true, ':': true, '|': true, '?': true,
	'.': true, '@': true, '=': true, ';': true, '-': true,
}

func (l *Lexer) lexSymbol(start bamlerr.Span) Token {
	r := l.advance()
	if !symbolRunes[r] {
		l.diags.PushError(bamlerr.At(bamlerr.ParseError, start, "unexpected character %q", r))
	}
	end := l.here()
	start.EndLine, start.EndCol = end.StartLine, end.StartCol
	return Token{Kind: TokSymbol, Text: string(r), Span: start}
}
