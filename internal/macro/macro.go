// Package macro holds macro definitions and the table they live in.
package macro

import (
	"fmt"
	"strings"

	"github.com/fwessels/cppx/internal/token"
)

// Kind of macro.
type Kind int

const (
	ObjectLike Kind = iota
	FunctionLike
	// Builtin macros compute their replacement at the expansion site, such
	// as __LINE__ or __FILE__.
	Builtin
)

func (k Kind) String() string {
	switch k {
	case ObjectLike:
		return "object-like"
	case FunctionLike:
		return "function-like"
	case Builtin:
		return "builtin"
	}
	return "unknown"
}

const VaArgs = "__VA_ARGS__"

// BuiltinFunc computes the replacement of a builtin macro for the
// identifier token that invoked it.
type BuiltinFunc func(site *token.Token) []*token.Token

// Macro is one definition.
type Macro struct {
	Name string
	Kind Kind
	// Params are the parameter names in order. For a variadic macro the
	// last entry is the variadic parameter: __VA_ARGS__, or the name given
	// in the GNU "args..." form.
	Params   []string
	Variadic bool
	Body     []*token.Token
	Loc      token.Location

	Builtin BuiltinFunc
}

func (m *Macro) FunctionLike() bool { return m.Kind == FunctionLike }

// ParamIndex returns the position of the named parameter, or -1.
func (m *Macro) ParamIndex(name string) int {
	if m.Kind != FunctionLike {
		return -1
	}
	for i, p := range m.Params {
		if p == name {
			return i
		}
	}
	return -1
}

// NamedParams is the number of parameters that bind exactly one argument.
func (m *Macro) NamedParams() int {
	if m.Variadic {
		return len(m.Params) - 1
	}
	return len(m.Params)
}

// IsVariadicParam reports whether param index i is the variadic parameter.
func (m *Macro) IsVariadicParam(i int) bool {
	return m.Variadic && i == len(m.Params)-1
}

// Signature renders the macro the way a #define would spell it, without the
// directive itself; used for -dM dumps and diagnostics.
func (m *Macro) Signature() string {
	var b strings.Builder
	b.WriteString(m.Name)
	if m.Kind == FunctionLike {
		b.WriteByte('(')
		for i, p := range m.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			switch {
			case m.IsVariadicParam(i) && p == VaArgs:
				b.WriteString("...")
			case m.IsVariadicParam(i):
				b.WriteString(p + "...")
			default:
				b.WriteString(p)
			}
		}
		b.WriteByte(')')
	}
	if len(m.Body) > 0 {
		b.WriteByte(' ')
		b.WriteString(token.Join(m.Body))
	}
	return b.String()
}

// Compare selects how two definitions of one name are checked for
// compatibility.
type Compare int

const (
	// Exact requires identical parameter names, token spellings and
	// whitespace separation.
	Exact Compare = iota
	// Semantic ignores whitespace differences and compares parameters by
	// position, so "F(a) a" and "F(b) b" are the same definition.
	Semantic
)

// Equal reports whether m and o are compatible definitions.
func (m *Macro) Equal(o *Macro, cmp Compare) bool {
	if m.Kind != o.Kind || m.Variadic != o.Variadic || len(m.Params) != len(o.Params) || len(m.Body) != len(o.Body) {
		return false
	}
	if m.Kind == Builtin {
		return m.Name == o.Name
	}
	if cmp == Exact {
		for i := range m.Params {
			if m.Params[i] != o.Params[i] {
				return false
			}
		}
	}
	for i := range m.Body {
		a, b := m.Body[i], o.Body[i]
		if a.Kind != b.Kind {
			return false
		}
		if cmp == Exact && i > 0 && a.Space != b.Space {
			return false
		}
		if a.Kind == token.Ident {
			ai, bi := m.ParamIndex(a.Text), o.ParamIndex(b.Text)
			if cmp == Semantic && (ai >= 0 || bi >= 0) {
				if ai != bi {
					return false
				}
				continue
			}
		}
		if a.Text != b.Text {
			return false
		}
	}
	return true
}

// SyntaxError describes a malformed #define.
type SyntaxError struct {
	Tok *token.Token
	Msg string
}

func (e *SyntaxError) Error() string { return e.Msg }

// Parse builds a definition from the tokens of a #define line: the macro
// name followed by the rest of the line. Whitespace must already be folded
// into the tokens' Space flags.
func Parse(name *token.Token, rest []*token.Token) (*Macro, error) {
	if name == nil || name.Kind != token.Ident {
		return nil, &SyntaxError{Tok: name, Msg: "macro names must be identifiers"}
	}
	if name.Text == "defined" {
		return nil, &SyntaxError{Tok: name, Msg: `"defined" cannot be used as a macro name`}
	}
	m := &Macro{Name: name.Text, Kind: ObjectLike, Loc: name.Location()}
	if len(rest) > 0 && rest[0].IsPunct("(") && !rest[0].Space {
		m.Kind = FunctionLike
		n, err := m.parseParams(rest)
		if err != nil {
			return nil, err
		}
		rest = rest[n:]
	}
	m.Body = make([]*token.Token, len(rest))
	for i, t := range rest {
		t = t.Copy()
		if i == 0 {
			t.Space = false
		}
		m.Body[i] = t
	}
	if err := m.checkBody(); err != nil {
		return nil, err
	}
	return m, nil
}

// parseParams consumes "( params )" and returns the number of tokens used.
func (m *Macro) parseParams(toks []*token.Token) (int, error) {
	m.Params = []string{}
	i := 1
	expectParam := true
	for ; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.IsPunct(")"):
			if expectParam && len(m.Params) > 0 {
				return 0, &SyntaxError{Tok: t, Msg: "expected parameter name before ')'"}
			}
			return i + 1, nil
		case m.Variadic:
			return 0, &SyntaxError{Tok: t, Msg: "expected ')' after \"...\""}
		case expectParam && t.IsPunct("..."):
			m.Params = append(m.Params, VaArgs)
			m.Variadic = true
			expectParam = false
		case expectParam && t.Kind == token.Ident:
			if t.Text == VaArgs {
				return 0, &SyntaxError{Tok: t, Msg: "__VA_ARGS__ can not be used as a parameter name"}
			}
			if m.ParamIndex(t.Text) >= 0 {
				return 0, &SyntaxError{Tok: t, Msg: fmt.Sprintf("duplicate macro parameter %q", t.Text)}
			}
			m.Params = append(m.Params, t.Text)
			if i+1 < len(toks) && toks[i+1].IsPunct("...") {
				m.Variadic = true
				i++
			}
			expectParam = false
		case !expectParam && t.IsPunct(","):
			expectParam = true
		default:
			return 0, &SyntaxError{Tok: t, Msg: fmt.Sprintf("unexpected %q in macro parameter list", t.Text)}
		}
	}
	return 0, &SyntaxError{Tok: toks[0], Msg: "missing ')' in macro parameter list"}
}

func (m *Macro) checkBody() error {
	if n := len(m.Body); n > 0 {
		if m.Body[0].IsPunct("##") {
			return &SyntaxError{Tok: m.Body[0], Msg: "'##' cannot appear at either end of a macro expansion"}
		}
		if m.Body[n-1].IsPunct("##") {
			return &SyntaxError{Tok: m.Body[n-1], Msg: "'##' cannot appear at either end of a macro expansion"}
		}
	}
	for i, t := range m.Body {
		if t.Kind != token.Ident && !t.IsPunct("#") {
			continue
		}
		if t.Text == VaArgs && (!m.Variadic || m.Params[len(m.Params)-1] != VaArgs) {
			return &SyntaxError{Tok: t, Msg: "__VA_ARGS__ can only appear in the expansion of a variadic macro"}
		}
		if m.Kind == FunctionLike && t.IsPunct("#") {
			if i+1 >= len(m.Body) || m.ParamIndex(m.Body[i+1].Text) < 0 || m.Body[i+1].Kind != token.Ident {
				return &SyntaxError{Tok: t, Msg: "'#' is not followed by a macro parameter"}
			}
		}
	}
	return nil
}
