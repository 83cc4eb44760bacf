// Package token defines preprocessing tokens, their source positions and the
// bookkeeping attached to them by macro expansion.
package token

import (
	"strings"

	mtoken "modernc.org/token"
)

// Kind classifies a preprocessing token.
type Kind int

const (
	EOF Kind = iota
	Ident
	Number
	String
	Char
	Punct
	Space
	Newline
	Other

	// Placemarker stands in for an empty macro argument while pasting. It
	// never leaves the expansion engine.
	Placemarker
)

var kindNames = [...]string{
	EOF:         "EOF",
	Ident:       "Ident",
	Number:      "Number",
	String:      "String",
	Char:        "Char",
	Punct:       "Punct",
	Space:       "Space",
	Newline:     "Newline",
	Other:       "Other",
	Placemarker: "Placemarker",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

type (
	File     = mtoken.File
	Pos      = mtoken.Pos
	Position = mtoken.Position
)

const NoPos = mtoken.NoPos

// NewFile registers a source of the given size. Line starts are added by the
// lexer while it scans the content.
func NewFile(name string, size int) *File {
	return mtoken.NewFile(name, size)
}

// Expansion records one macro replacement step: which macro produced a token,
// where it was invoked and where it was defined. Parent links to the
// expansion that produced the invocation itself, if any.
type Expansion struct {
	Macro      string
	Invocation Location
	Definition Location
	Parent     *Expansion
}

// Root returns the outermost expansion in the chain.
func (e *Expansion) Root() *Expansion {
	for e.Parent != nil {
		e = e.Parent
	}
	return e
}

// Location is a position inside a specific file.
type Location struct {
	File *File
	Pos  Pos
}

func (l Location) Position() Position {
	if l.File == nil || !l.Pos.IsValid() {
		return Position{}
	}
	return l.File.PositionFor(l.Pos, true)
}

// Token is a preprocessing token. Tokens are treated as values once they
// leave the lexer: expansion copies a token before changing it.
type Token struct {
	Kind Kind
	Text string

	File *File
	Pos  Pos

	// Space is set when whitespace preceded the token on its line.
	Space bool
	// Expanded marks tokens produced from a macro replacement list.
	Expanded bool

	Hide      *HideSet
	Expansion *Expansion
}

func (t *Token) Location() Location { return Location{File: t.File, Pos: t.Pos} }

// Position reports where the token was spelled, honoring #line remapping.
func (t *Token) Position() Position { return t.Location().Position() }

// Site reports the location diagnostics should point at: the outermost
// invocation for expanded tokens, the spelling location otherwise.
func (t *Token) Site() Location {
	if t.Expansion != nil {
		return t.Expansion.Root().Invocation
	}
	return t.Location()
}

func (t *Token) Copy() *Token {
	c := *t
	return &c
}

func (t *Token) Is(kind Kind, text string) bool {
	return t != nil && t.Kind == kind && t.Text == text
}

func (t *Token) IsPunct(text string) bool { return t.Is(Punct, text) }

func (t *Token) IsIdent() bool { return t != nil && t.Kind == Ident }

func (t *Token) String() string { return t.Text }

// Join renders tokens the way the serialized output does, on one line.
func Join(toks []*Token) string {
	var b strings.Builder
	var prev *Token
	for _, t := range toks {
		switch t.Kind {
		case Placemarker, EOF:
			continue
		case Newline:
			b.WriteByte('\n')
			prev = nil
			continue
		}
		if prev != nil && NeedSpace(prev, t) {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
		prev = t
	}
	return b.String()
}

// NeedSpace reports whether a space must separate prev and t in text form.
// Source whitespace is kept. Tokens that did not touch in the source, such as
// the neighbours of an empty expansion, are separated when gluing their
// spellings would lex differently.
func NeedSpace(prev, t *Token) bool {
	if t.Space {
		return true
	}
	if adjacent(prev, t) {
		return false
	}
	return wouldPaste(prev, t)
}

// adjacent reports whether prev and t are unexpanded tokens spelled next to
// each other in the same file.
func adjacent(prev, t *Token) bool {
	return !prev.Expanded && !t.Expanded && prev.File != nil && prev.File == t.File &&
		prev.Pos+Pos(len(prev.Text)) == t.Pos
}

func wouldPaste(a, b *Token) bool {
	if a.Text == "" || b.Text == "" {
		return false
	}
	last := a.Text[len(a.Text)-1]
	first := b.Text[0]
	switch {
	case isWordByte(last) && isWordByte(first):
		return true
	case a.Kind == Number && (first == '.' || first == '+' || first == '-'):
		return true
	case a.Kind == Punct && b.Kind == Number && last == '.':
		return true
	case a.Kind == Punct && b.Kind == Punct:
		return punctPairs[a.Text[len(a.Text)-1:]+b.Text[:1]]
	case a.Kind == Ident && (b.Kind == String || b.Kind == Char):
		// L"x", u8"x" and friends.
		return true
	}
	return false
}

var punctPairs = map[string]bool{
	"++": true, "--": true, "+=": true, "-=": true, "->": true,
	"<<": true, ">>": true, "<=": true, ">=": true, "==": true,
	"!=": true, "&&": true, "||": true, "&=": true, "|=": true,
	"^=": true, "*=": true, "/=": true, "%=": true, "##": true,
	"..": true, "//": true, "/*": true, "*/": true,
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= 0x80
}
