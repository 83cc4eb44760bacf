// Package lexer turns source text into preprocessing tokens.
//
// Backslash-newline pairs are removed by the character reader before any
// token is recognized, so a splice may appear anywhere, even inside an
// identifier or a punctuator. Line numbers stay physical.
package lexer

import (
	"strings"

	"github.com/fwessels/cppx/internal/diag"
	"github.com/fwessels/cppx/internal/token"
)

// ErrorHandler is called for every recoverable lexical problem.
type ErrorHandler func(pos token.Pos, kind diag.Kind, msg string)

// Lexer produces the token sequence for one source file. The sequence ends
// with an EOF token and can be restarted with Reset.
type Lexer struct {
	file *token.File
	src  []byte
	err  ErrorHandler

	off       int
	lastLine  int // offset of the last line start registered in file
	sawSpace  bool
	errorSeen bool
}

func New(file *token.File, src []byte, err ErrorHandler) *Lexer {
	l := &Lexer{file: file, src: src, err: err}
	for i, c := range src {
		if c == '\n' {
			l.addLine(i + 1)
		}
	}
	return l
}

func (l *Lexer) File() *token.File { return l.file }

// Reset rewinds the lexer to the start of its input.
func (l *Lexer) Reset() {
	l.off = 0
	l.sawSpace = false
	l.errorSeen = false
}

// ErrorSeen reports whether a lexical error occurred since the last Reset.
func (l *Lexer) ErrorSeen() bool { return l.errorSeen }

func (l *Lexer) error(off int, kind diag.Kind, msg string) {
	l.errorSeen = true
	if l.err != nil {
		l.err(l.pos(off), kind, msg)
	}
}

func (l *Lexer) pos(off int) token.Pos {
	if off > len(l.src) {
		off = len(l.src)
	}
	return l.file.Pos(off)
}

func (l *Lexer) addLine(off int) {
	if off > l.lastLine && off < len(l.src) {
		l.file.AddLine(off)
		l.lastLine = off
	}
}

// splice skips any backslash-newline sequences starting at off.
func (l *Lexer) splice(off int) int {
	for off < len(l.src) && l.src[off] == '\\' {
		switch {
		case off+1 < len(l.src) && l.src[off+1] == '\n':
			off += 2
		case off+2 < len(l.src) && l.src[off+1] == '\r' && l.src[off+2] == '\n':
			off += 3
		default:
			return off
		}
	}
	return off
}

// peek returns the k-th logical character ahead, or 0 at end of input.
func (l *Lexer) peek(k int) byte {
	off := l.off
	for i := 0; i < k; i++ {
		off = l.splice(off)
		if off >= len(l.src) {
			return 0
		}
		off++
	}
	off = l.splice(off)
	if off >= len(l.src) {
		return 0
	}
	return l.src[off]
}

func (l *Lexer) atEOF() bool { return l.splice(l.off) >= len(l.src) }

// next consumes one logical character.
func (l *Lexer) next() byte {
	l.off = l.splice(l.off)
	if l.off >= len(l.src) {
		return 0
	}
	c := l.src[l.off]
	l.off++
	return c
}

// Next returns the next token. After the input is exhausted it keeps
// returning EOF tokens.
func (l *Lexer) Next() *token.Token {
	start := l.splice(l.off)
	l.off = start
	if start >= len(l.src) {
		return &token.Token{Kind: token.EOF, File: l.file, Pos: l.pos(start), Space: l.sawSpace}
	}

	c := l.peek(0)
	var tok *token.Token
	switch {
	case c == '\n':
		l.next()
		l.sawSpace = false
		return &token.Token{Kind: token.Newline, Text: "\n", File: l.file, Pos: l.pos(start)}
	case isBlank(c) || c == '/' && (l.peek(1) == '/' || l.peek(1) == '*'):
		l.skipSpace()
		l.sawSpace = true
		return &token.Token{Kind: token.Space, Text: " ", File: l.file, Pos: l.pos(start)}
	case isIdentStart(c):
		tok = l.identOrLiteral(start)
	case isDigit(c) || c == '.' && isDigit(l.peek(1)):
		tok = l.number(start)
	case c == '"' || c == '\'':
		tok = l.literal(start, "")
	default:
		tok = l.punct(start)
	}
	tok.Space = l.sawSpace
	l.sawSpace = false
	return tok
}

// skipSpace consumes a run of blanks and comments.
func (l *Lexer) skipSpace() {
	for {
		c := l.peek(0)
		switch {
		case isBlank(c):
			l.next()
		case c == '/' && l.peek(1) == '/':
			for c := l.peek(0); c != '\n' && c != 0; c = l.peek(0) {
				l.next()
			}
		case c == '/' && l.peek(1) == '*':
			start := l.off
			l.next()
			l.next()
			for {
				if l.atEOF() {
					l.error(start, diag.UnterminatedComment, "unterminated comment")
					return
				}
				if l.peek(0) == '*' && l.peek(1) == '/' {
					l.next()
					l.next()
					break
				}
				l.next()
			}
		default:
			return
		}
	}
}

func (l *Lexer) identOrLiteral(start int) *token.Token {
	var b strings.Builder
	for c := l.peek(0); isIdentPart(c); c = l.peek(0) {
		b.WriteByte(l.next())
	}
	text := b.String()
	if q := l.peek(0); q == '"' || q == '\'' {
		switch text {
		case "L", "u", "U":
			return l.literal(start, text)
		case "u8":
			if q == '"' {
				return l.literal(start, text)
			}
		}
	}
	return &token.Token{Kind: token.Ident, Text: text, File: l.file, Pos: l.pos(start)}
}

// number scans a pp-number. Its value is never computed here.
func (l *Lexer) number(start int) *token.Token {
	var b strings.Builder
	b.WriteByte(l.next())
	for {
		c := l.peek(0)
		switch {
		case (c == '+' || c == '-') && isExponent(b.String()):
			b.WriteByte(l.next())
		case isIdentPart(c) || c == '.':
			b.WriteByte(l.next())
		default:
			return &token.Token{Kind: token.Number, Text: b.String(), File: l.file, Pos: l.pos(start)}
		}
	}
}

func isExponent(s string) bool {
	switch s[len(s)-1] {
	case 'e', 'E', 'p', 'P':
		return true
	}
	return false
}

// literal scans a string or character literal. An unterminated literal runs
// to the end of the physical line.
func (l *Lexer) literal(start int, prefix string) *token.Token {
	var b strings.Builder
	b.WriteString(prefix)
	quote := l.next()
	b.WriteByte(quote)
	kind := token.String
	if quote == '\'' {
		kind = token.Char
	}
	for {
		c := l.peek(0)
		switch c {
		case 0, '\n':
			what := "string literal"
			if kind == token.Char {
				what = "character constant"
			}
			l.error(start, diag.UnterminatedLiteral, "missing terminating "+string(quote)+" character in "+what)
			return &token.Token{Kind: kind, Text: b.String(), File: l.file, Pos: l.pos(start)}
		case '\\':
			b.WriteByte(l.next())
			if n := l.peek(0); n != 0 && n != '\n' {
				b.WriteByte(l.next())
			}
		default:
			b.WriteByte(l.next())
			if c == quote {
				return &token.Token{Kind: kind, Text: b.String(), File: l.file, Pos: l.pos(start)}
			}
		}
	}
}

var puncts3 = []string{"...", "<<=", ">>="}

var puncts2 = []string{
	"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"*=", "/=", "%=", "+=", "-=", "&=", "^=", "|=", "##",
}

const puncts1 = "[](){}.&*+-~!/%<>^|?:;=,#"

func (l *Lexer) punct(start int) *token.Token {
	c0, c1, c2 := l.peek(0), l.peek(1), l.peek(2)
	for _, p := range puncts3 {
		if p[0] == c0 && p[1] == c1 && p[2] == c2 {
			l.next()
			l.next()
			l.next()
			return &token.Token{Kind: token.Punct, Text: p, File: l.file, Pos: l.pos(start)}
		}
	}
	for _, p := range puncts2 {
		if p[0] == c0 && p[1] == c1 {
			l.next()
			l.next()
			return &token.Token{Kind: token.Punct, Text: p, File: l.file, Pos: l.pos(start)}
		}
	}
	l.next()
	kind := token.Other
	if strings.IndexByte(puncts1, c0) >= 0 {
		kind = token.Punct
	}
	return &token.Token{Kind: kind, Text: string(c0), File: l.file, Pos: l.pos(start)}
}

// Tokenize lexes all of src, including the final EOF token.
func Tokenize(file *token.File, src []byte, err ErrorHandler) []*token.Token {
	l := New(file, src, err)
	var toks []*token.Token
	for {
		t := l.Next()
		toks = append(toks, t)
		if t.Kind == token.EOF {
			return toks
		}
	}
}

// Single lexes text and reports whether it forms exactly one valid token.
// It is used to check the result of a ## paste.
func Single(text string) (*token.Token, bool) {
	if text == "" {
		return nil, false
	}
	l := New(token.NewFile("<paste>", len(text)), []byte(text), nil)
	t := l.Next()
	if t.Kind == token.Space || t.Kind == token.Newline || t.Kind == token.EOF || l.ErrorSeen() {
		return nil, false
	}
	if l.Next().Kind != token.EOF {
		return nil, false
	}
	t.Space = false
	return t, true
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\v' || c == '\f' || c == '\r'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
