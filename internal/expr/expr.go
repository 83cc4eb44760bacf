// Package expr evaluates the constant expressions of #if and #elif lines.
//
// The input has already been macro expanded and every defined operator
// replaced by 0 or 1. Arithmetic is done in int64 and wraps on overflow.
// Operands that are not evaluated because of short-circuiting are parsed
// but never computed, so "0 && 1/0" is fine.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fwessels/cppx/internal/token"
)

// Error describes an invalid constant expression. Tok is the token the
// problem was found at; it is nil at end of input.
type Error struct {
	Tok *token.Token
	Msg string
}

func (e *Error) Error() string { return e.Msg }

type parser struct {
	toks []*token.Token
	off  int
	err  *Error
}

// Eval evaluates toks. Space and newline tokens are ignored.
func Eval(toks []*token.Token) (int64, error) {
	p := &parser{}
	for _, t := range toks {
		switch t.Kind {
		case token.Space, token.Newline, token.EOF, token.Placemarker:
			continue
		}
		p.toks = append(p.toks, t)
	}
	if len(p.toks) == 0 {
		return 0, &Error{Msg: "#if with no expression"}
	}
	v := p.conditional(true)
	if p.err == nil && p.off < len(p.toks) {
		t := p.toks[p.off]
		p.fail(t, "missing binary operator before token %q", t.Text)
	}
	if p.err != nil {
		return 0, p.err
	}
	return v, nil
}

// True evaluates toks and reports whether the result is non-zero.
func True(toks []*token.Token) (bool, error) {
	v, err := Eval(toks)
	return v != 0, err
}

func (p *parser) fail(t *token.Token, format string, args ...interface{}) {
	if p.err == nil {
		p.err = &Error{Tok: t, Msg: fmt.Sprintf(format, args...)}
	}
}

func (p *parser) peek() *token.Token {
	if p.off < len(p.toks) && p.err == nil {
		return p.toks[p.off]
	}
	return nil
}

func (p *parser) next() *token.Token {
	t := p.peek()
	if t != nil {
		p.off++
	}
	return t
}

func (p *parser) accept(op string) bool {
	if t := p.peek(); t.IsPunct(op) {
		p.off++
		return true
	}
	return false
}

//	conditional-expression:
//		logical-OR-expression
//		logical-OR-expression ? expression : conditional-expression
func (p *parser) conditional(eval bool) int64 {
	cond := p.logicalOr(eval)
	if !p.accept("?") {
		return cond
	}
	a := p.conditional(eval && cond != 0)
	if !p.accept(":") {
		p.fail(p.peek(), "expected ':' in conditional expression")
		return 0
	}
	b := p.conditional(eval && cond == 0)
	if cond != 0 {
		return a
	}
	return b
}

func (p *parser) logicalOr(eval bool) int64 {
	lhs := p.logicalAnd(eval)
	for p.accept("||") {
		rhs := p.logicalAnd(eval && lhs == 0)
		lhs = bool64(lhs != 0 || rhs != 0)
	}
	return lhs
}

func (p *parser) logicalAnd(eval bool) int64 {
	lhs := p.binary(0, eval)
	for p.accept("&&") {
		rhs := p.binary(0, eval && lhs != 0)
		lhs = bool64(lhs != 0 && rhs != 0)
	}
	return lhs
}

// levels lists the binary operators below && from loosest to tightest.
var levels = [][]string{
	{"|"},
	{"^"},
	{"&"},
	{"==", "!="},
	{"<", ">", "<=", ">="},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *parser) binary(level int, eval bool) int64 {
	if level == len(levels) {
		return p.unary(eval)
	}
	lhs := p.binary(level+1, eval)
	for {
		t := p.peek()
		if t == nil || t.Kind != token.Punct || !contains(levels[level], t.Text) {
			return lhs
		}
		p.off++
		rhs := p.binary(level+1, eval)
		if eval {
			lhs = p.apply(t, lhs, rhs)
		}
	}
}

func (p *parser) apply(op *token.Token, a, b int64) int64 {
	switch op.Text {
	case "|":
		return a | b
	case "^":
		return a ^ b
	case "&":
		return a & b
	case "==":
		return bool64(a == b)
	case "!=":
		return bool64(a != b)
	case "<":
		return bool64(a < b)
	case ">":
		return bool64(a > b)
	case "<=":
		return bool64(a <= b)
	case ">=":
		return bool64(a >= b)
	case "<<", ">>":
		if b < 0 || b > 63 {
			p.fail(op, "shift count %d out of range", b)
			return 0
		}
		if op.Text == "<<" {
			return a << uint(b)
		}
		return a >> uint(b)
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/", "%":
		if b == 0 {
			p.fail(op, "division by zero in #if")
			return 0
		}
		if op.Text == "/" {
			return a / b
		}
		return a % b
	}
	p.fail(op, "unexpected operator %q", op.Text)
	return 0
}

//	unary-operator: one of
//		+ - ~ !
func (p *parser) unary(eval bool) int64 {
	switch {
	case p.accept("+"):
		return p.unary(eval)
	case p.accept("-"):
		return -p.unary(eval)
	case p.accept("~"):
		return ^p.unary(eval)
	case p.accept("!"):
		return bool64(p.unary(eval) == 0)
	}
	return p.primary(eval)
}

//	primary-expression:
//		identifier
//		constant
//		( expression )
func (p *parser) primary(eval bool) int64 {
	t := p.next()
	if t == nil {
		if p.err == nil {
			p.fail(nil, "#if expression ends unexpectedly")
		}
		return 0
	}
	switch t.Kind {
	case token.Ident:
		return 0
	case token.Number:
		v, err := IntConst(t.Text)
		if err != nil {
			p.fail(t, "%v", err)
		}
		return v
	case token.Char:
		v, err := CharConst(t.Text)
		if err != nil {
			p.fail(t, "%v", err)
		}
		return v
	case token.Punct:
		if t.Text == "(" {
			v := p.conditional(eval)
			if !p.accept(")") {
				p.fail(p.peek(), "missing ')' in expression")
			}
			return v
		}
	}
	p.fail(t, "token %q is not valid in preprocessor expressions", t.Text)
	return 0
}

// IntConst parses an integer constant with an optional u/l suffix.
//
//	integer-suffix: one of
//		u ul ull l lu ll llu
func IntConst(s string) (int64, error) {
	digits := strings.TrimRight(s, "uUlL")
	if !validSuffix(s[len(digits):]) {
		return 0, fmt.Errorf("invalid suffix %q on integer constant", s[len(digits):])
	}
	base := 10
	switch {
	case strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X"):
		base, digits = 16, digits[2:]
	case strings.HasPrefix(digits, "0b") || strings.HasPrefix(digits, "0B"):
		base, digits = 2, digits[2:]
	case len(digits) > 1 && digits[0] == '0':
		base, digits = 8, digits[1:]
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, fmt.Errorf("integer constant %q is too large", s)
		}
		return 0, fmt.Errorf("invalid integer constant %q", s)
	}
	return int64(n), nil
}

func validSuffix(s string) bool {
	switch strings.ToLower(s) {
	case "", "u", "l", "ul", "lu", "ll", "ull", "llu":
	default:
		return false
	}
	return !strings.Contains(s, "lL") && !strings.Contains(s, "Ll")
}

// CharConst computes the value of a character constant. Multi-character
// constants are packed big-endian into the result; a plain single-byte
// constant is sign extended like a signed char.
func CharConst(s string) (int64, error) {
	wide := false
	for _, prefix := range []string{"u8", "L", "u", "U"} {
		if strings.HasPrefix(s, prefix+"'") {
			s = s[len(prefix):]
			wide = prefix != "u8"
			break
		}
	}
	if len(s) < 3 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return 0, fmt.Errorf("invalid character constant %s", s)
	}
	body := s[1 : len(s)-1]
	var v int64
	n := 0
	for i := 0; i < len(body); {
		c, w, err := unescape(body[i:])
		if err != nil {
			return 0, err
		}
		if wide {
			v = c
		} else {
			v = v<<8 | c&0xff
		}
		i += w
		n++
	}
	if !wide && n == 1 {
		v = int64(int8(v))
	}
	return v, nil
}

// unescape decodes one possibly escaped character and returns its value and
// the number of bytes consumed.
func unescape(s string) (int64, int, error) {
	if s[0] != '\\' {
		return int64(s[0]), 1, nil
	}
	if len(s) < 2 {
		return 0, 0, fmt.Errorf("incomplete escape sequence")
	}
	switch c := s[1]; c {
	case 'n':
		return '\n', 2, nil
	case 't':
		return '\t', 2, nil
	case 'r':
		return '\r', 2, nil
	case 'a':
		return 7, 2, nil
	case 'b':
		return 8, 2, nil
	case 'f':
		return 12, 2, nil
	case 'v':
		return 11, 2, nil
	case 'e', 'E':
		return 27, 2, nil
	case '\\', '\'', '"', '?':
		return int64(c), 2, nil
	case 'x':
		i := 2
		for i < len(s) && isHex(s[i]) {
			i++
		}
		if i == 2 {
			return 0, 0, fmt.Errorf("\\x used with no following hex digits")
		}
		v, err := strconv.ParseUint(s[2:i], 16, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("hex escape sequence out of range")
		}
		return int64(v), i, nil
	default:
		if c < '0' || c > '7' {
			return 0, 0, fmt.Errorf("unknown escape sequence '\\%c'", c)
		}
		i := 1
		for i < len(s) && i < 4 && s[i] >= '0' && s[i] <= '7' {
			i++
		}
		v, _ := strconv.ParseUint(s[1:i], 8, 64)
		return int64(v), i, nil
	}
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func bool64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
