package preprocessor

import (
	"strconv"
	"strings"

	"github.com/fwessels/cppx/internal/diag"
	"github.com/fwessels/cppx/internal/macro"
	"github.com/fwessels/cppx/internal/token"
)

// builtins returns the dynamically computed macros of this run.
func (r *run) builtins() []*macro.Macro {
	return []*macro.Macro{
		{Name: "__FILE__", Kind: macro.Builtin, Builtin: func(site *token.Token) []*token.Token {
			return []*token.Token{{Kind: token.String, Text: quote(site.Site().Position().Filename)}}
		}},
		{Name: "__LINE__", Kind: macro.Builtin, Builtin: func(site *token.Token) []*token.Token {
			return []*token.Token{{Kind: token.Number, Text: strconv.Itoa(site.Site().Position().Line)}}
		}},
		{Name: "__COUNTER__", Kind: macro.Builtin, Builtin: func(site *token.Token) []*token.Token {
			n := r.counter
			r.counter++
			return []*token.Token{{Kind: token.Number, Text: strconv.FormatInt(n, 10)}}
		}},
		{Name: "__INCLUDE_LEVEL__", Kind: macro.Builtin, Builtin: func(site *token.Token) []*token.Token {
			level := len(r.sources) - 1
			if level < 0 {
				level = 0
			}
			return []*token.Token{{Kind: token.Number, Text: strconv.Itoa(level)}}
		}},
	}
}

// quote spells s as a string literal.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

// installBuiltins defines the builtin macros of r in a fresh table.
func (r *run) installBuiltins() {
	for _, m := range r.builtins() {
		r.defineBuiltin(m)
	}
}

// rebindBuiltins points builtin macros copied from another run's table at r.
// Builtins the other run had undefined or redefined stay that way.
func (r *run) rebindBuiltins() {
	for _, m := range r.builtins() {
		if old, ok := r.macros.Lookup(m.Name); ok && old.Kind == macro.Builtin {
			r.macros.Undef(m.Name)
			r.defineBuiltin(m)
		}
	}
}

func (r *run) defineBuiltin(m *macro.Macro) {
	pos := token.Position{Filename: "<built-in>"}
	if err := r.define(m, pos); err != nil {
		r.report(diag.Error, diag.MacroRedefinition, pos, "%s: %v", m.Name, err)
	}
}
