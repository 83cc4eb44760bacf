package preprocessor

import (
	"strings"

	"github.com/fwessels/cppx/internal/diag"
	"github.com/fwessels/cppx/internal/lexer"
	"github.com/fwessels/cppx/internal/macro"
	"github.com/fwessels/cppx/internal/token"
)

// ---------------- Expansion ----------------

type inputChunk struct {
	toks []*token.Token
	i    int
}

// expander rescans a pushback stack of token chunks. The top chunk is read
// first. A replacement is pushed on top, so it is rescanned together with
// whatever input follows it, without recursion.
type expander struct {
	r     *run
	stack []inputChunk

	// more supplies the next text line when an invocation runs past the
	// end of the input. nil once exhausted.
	more func() []*token.Token

	cond   bool // #if expression: resolve the defined operator
	failed bool
}

func (r *run) newExpander(cond bool) *expander {
	return &expander{r: r, cond: cond}
}

// expandTokens fully expands toks on their own.
func (r *run) expandTokens(toks []*token.Token, cond bool) ([]*token.Token, bool) {
	e := r.newExpander(cond)
	e.push(toks)
	out := e.expand()
	return out, !e.failed
}

func (e *expander) push(toks []*token.Token) {
	if len(toks) > 0 {
		e.stack = append(e.stack, inputChunk{toks: toks})
	}
}

// pull places the next line below everything still pending.
func (e *expander) pull() bool {
	if e.more == nil {
		return false
	}
	line := e.more()
	if line == nil {
		e.more = nil
		return false
	}
	e.stack = append([]inputChunk{{toks: line}}, e.stack...)
	return true
}

func (e *expander) next() (*token.Token, bool) {
	for len(e.stack) > 0 {
		top := &e.stack[len(e.stack)-1]
		if top.i >= len(top.toks) {
			e.stack = e.stack[:len(e.stack)-1]
			continue
		}
		t := top.toks[top.i]
		top.i++
		return t, true
	}
	return nil, false
}

// nextMore is next, pulling further lines when the stack runs dry.
func (e *expander) nextMore() (*token.Token, bool) {
	for {
		if t, ok := e.next(); ok {
			return t, true
		}
		if !e.pull() {
			return nil, false
		}
	}
}

func (e *expander) peek(offset int) (*token.Token, bool) {
	for {
		off := offset
		for i := len(e.stack) - 1; i >= 0; i-- {
			chunk := e.stack[i]
			remain := len(chunk.toks) - chunk.i
			if off < remain {
				return chunk.toks[chunk.i+off], true
			}
			off -= remain
		}
		if !e.pull() {
			return nil, false
		}
	}
}

func (e *expander) report(site *token.Token, kind diag.Kind, format string, args ...interface{}) {
	e.r.report(diag.Error, kind, site.Site().Position(), format, args...)
}

func (e *expander) expand() []*token.Token {
	var out []*token.Token
	for {
		t, ok := e.next()
		if !ok {
			return out
		}
		if t.Kind != token.Ident {
			out = append(out, t)
			continue
		}
		if e.cond && t.Text == "defined" {
			out = append(out, e.defined(t))
			continue
		}
		if e.r.limitHit {
			out = append(out, t)
			continue
		}
		m, ok := e.r.macros.Lookup(t.Text)
		if !ok || t.Hide.Contains(t.Text) {
			out = append(out, t)
			continue
		}

		switch m.Kind {
		case macro.Builtin:
			if !e.count(t, "builtin") {
				out = append(out, t)
				continue
			}
			e.push(e.builtin(m, t))

		case macro.ObjectLike:
			if !e.count(t, "object") {
				out = append(out, t)
				continue
			}
			e.push(e.subst(m, t, nil, t.Hide.With(m.Name)))

		case macro.FunctionLike:
			skip, call := e.findParen()
			if !call {
				out = append(out, t)
				continue
			}
			args, rparen, raw, ok := e.collectArgs(m, t, skip)
			if ok && !e.count(t, "function") {
				ok = false
			}
			if !ok {
				// The call site stays as written; what follows the name is
				// scanned again as ordinary input.
				out = append(out, t)
				e.push(raw)
				continue
			}
			e.push(e.subst(m, t, args, t.Hide.Intersect(rparen.Hide).With(m.Name)))
		}
	}
}

// count charges one replacement against the run's expansion budget.
func (e *expander) count(site *token.Token, kind string) bool {
	e.r.expansions++
	if e.r.expansions > e.r.p.opts.ExpansionLimit {
		if !e.r.limitHit {
			e.r.limitHit = true
			e.report(site, diag.ExpansionLimit, "macro expansion limit of %d exceeded; remaining input is not expanded", e.r.p.opts.ExpansionLimit)
		}
		return false
	}
	macroExpansions.WithLabelValues(kind).Inc()
	return true
}

// findParen looks past newlines for the '(' that makes a function-like macro
// name an invocation. It returns how many tokens precede the '('.
func (e *expander) findParen() (int, bool) {
	for k := 0; ; k++ {
		t, ok := e.peek(k)
		if !ok {
			return 0, false
		}
		if t.Kind == token.Newline {
			continue
		}
		return k, t.IsPunct("(")
	}
}

// collectArgs reads the arguments of an invocation whose '(' is preceded by
// skip tokens. raw holds every token consumed, for pushing back on failure.
func (e *expander) collectArgs(m *macro.Macro, name *token.Token, skip int) (args [][]*token.Token, rparen *token.Token, raw []*token.Token, ok bool) {
	for i := 0; i <= skip; i++ {
		t, _ := e.next()
		raw = append(raw, t)
	}

	args = [][]*token.Token{nil}
	depth := 0
	space := false
collect:
	for {
		t, more := e.nextMore()
		if !more {
			e.report(name, diag.UnterminatedInvocation, "unterminated argument list invoking macro %q", m.Name)
			return nil, nil, raw, false
		}
		raw = append(raw, t)
		if t.Kind == token.Newline {
			space = true
			continue
		}
		if space {
			t = t.Copy()
			t.Space = true
			space = false
		}
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			if depth == 0 {
				rparen = t
				break collect
			}
			depth--
		case t.IsPunct(",") && depth == 0 && !(m.Variadic && len(args) == len(m.Params)):
			args = append(args, nil)
			continue
		}
		args[len(args)-1] = append(args[len(args)-1], t)
	}

	if len(m.Params) == 0 && len(args) == 1 && len(args[0]) == 0 {
		args = nil
	}
	if m.Variadic && len(args) == len(m.Params)-1 {
		args = append(args, nil)
	}
	if len(args) != len(m.Params) {
		switch {
		case len(args) > len(m.Params):
			e.report(name, diag.MacroArity, "macro %q passed %d arguments, but takes just %d", m.Name, len(args), len(m.Params))
		case m.Variadic:
			e.report(name, diag.MacroArity, "macro %q requires at least %d arguments, but only %d given", m.Name, m.NamedParams(), len(args))
		default:
			e.report(name, diag.MacroArity, "macro %q requires %d arguments, but only %d given", m.Name, len(m.Params), len(args))
		}
		return nil, nil, raw, false
	}
	return args, rparen, raw, true
}

// defined evaluates `defined NAME` or `defined ( NAME )` against the macro
// table before anything else can expand NAME.
func (e *expander) defined(t *token.Token) *token.Token {
	res := &token.Token{Kind: token.Number, Text: "0", File: t.File, Pos: t.Pos, Space: t.Space}
	n, ok := e.next()
	paren := ok && n.IsPunct("(")
	if paren {
		n, ok = e.next()
	}
	if !ok || n.Kind != token.Ident {
		e.fail(t, `operator "defined" requires an identifier`)
		return res
	}
	if paren {
		if c, ok := e.next(); !ok || !c.IsPunct(")") {
			e.fail(t, `missing ')' after "defined"`)
			return res
		}
	}
	if e.r.macros.Defined(n.Text) {
		res.Text = "1"
	}
	return res
}

func (e *expander) fail(site *token.Token, msg string) {
	if !e.failed {
		e.report(site, diag.InvalidConstantExpr, "%s", msg)
	}
	e.failed = true
}

func expansionOf(m *macro.Macro, site *token.Token) *token.Expansion {
	return &token.Expansion{
		Macro:      m.Name,
		Invocation: site.Location(),
		Definition: m.Loc,
		Parent:     site.Expansion,
	}
}

func (e *expander) builtin(m *macro.Macro, site *token.Token) []*token.Token {
	toks := m.Builtin(site)
	exp := expansionOf(m, site)
	hs := site.Hide.With(m.Name)
	for i, t := range toks {
		t.File, t.Pos = site.File, site.Pos
		t.Expanded = true
		t.Expansion = exp
		t.Hide = hs
		t.Space = i == 0 && site.Space
	}
	return toks
}

// subst builds the replacement of one invocation: parameters are replaced by
// their fully expanded arguments, except next to # and ## where the
// argument is used as written. hs is added to every produced token.
func (e *expander) subst(m *macro.Macro, site *token.Token, args [][]*token.Token, hs *token.HideSet) []*token.Token {
	body := m.Body
	exp := expansionOf(m, site)
	expanded := make([][]*token.Token, len(args))
	done := make([]bool, len(args))

	var out []*token.Token
	for i := 0; i < len(body); i++ {
		t := body[i]
		switch pi := paramIndex(m, t); {
		case m.FunctionLike() && t.IsPunct("#") && i+1 < len(body) && paramIndex(m, body[i+1]) >= 0:
			out = append(out, stringize(args[paramIndex(m, body[i+1])], t, exp))
			i++

		case t.IsPunct("##") && i+1 < len(body):
			out, i = e.paste(m, args, out, i, site, exp)

		case pi >= 0:
			if i+1 < len(body) && body[i+1].IsPunct("##") {
				if len(args[pi]) == 0 {
					out = append(out, placemarker(t))
				} else {
					out = appendArg(out, args[pi], t.Space)
				}
				continue
			}
			if m.IsVariadicParam(pi) && len(args[pi]) == 0 && e.r.p.opts.VariadicComma == DeleteComma &&
				i > 0 && body[i-1].IsPunct(",") && len(out) > 0 && out[len(out)-1].IsPunct(",") {
				out = out[:len(out)-1]
			}
			if !done[pi] {
				expanded[pi] = e.expandArg(args[pi])
				done[pi] = true
			}
			out = appendArg(out, expanded[pi], t.Space)

		default:
			c := t.Copy()
			c.Expansion = exp
			out = append(out, c)
		}
	}

	res := make([]*token.Token, 0, len(out))
	for _, t := range out {
		if t.Kind == token.Placemarker {
			continue
		}
		t.Hide = t.Hide.Union(hs)
		t.Expanded = true
		res = append(res, t)
	}
	if len(res) > 0 {
		res[0].Space = site.Space
	}
	return res
}

// paste handles the ## at body[i]. It returns the new output and the index
// of the last body token consumed.
func (e *expander) paste(m *macro.Macro, args [][]*token.Token, out []*token.Token, i int, site *token.Token, exp *token.Expansion) ([]*token.Token, int) {
	body := m.Body
	lhs := placemarker(body[i])
	if n := len(out); n > 0 {
		lhs = out[n-1]
		out = out[:n-1]
	}

	j := i + 1
	next := body[j]
	var rhs []*token.Token
	switch pi := paramIndex(m, next); {
	case m.FunctionLike() && next.IsPunct("#") && j+1 < len(body) && paramIndex(m, body[j+1]) >= 0:
		rhs = []*token.Token{stringize(args[paramIndex(m, body[j+1])], next, exp)}
		j++
	case pi >= 0 && m.IsVariadicParam(pi) && lhs.IsPunct(","):
		// ", ## __VA_ARGS__" keeps the comma only when there are variadic
		// arguments, unless the policy says to keep it anyway.
		if len(args[pi]) > 0 || e.r.p.opts.VariadicComma == KeepComma {
			out = append(out, lhs)
		}
		return appendArg(out, args[pi], next.Space), j
	case pi >= 0:
		rhs = appendArg(nil, args[pi], next.Space)
	default:
		c := next.Copy()
		c.Expansion = exp
		rhs = []*token.Token{c}
	}
	if len(rhs) == 0 {
		rhs = []*token.Token{placemarker(next)}
	}
	out = append(out, e.glue(lhs, rhs[0], site, exp)...)
	return append(out, rhs[1:]...), j
}

// glue joins two tokens into one by re-lexing their concatenated spelling.
// A paste that does not form exactly one token is reported and the operands
// are kept apart.
func (e *expander) glue(lhs, rhs, site *token.Token, exp *token.Expansion) []*token.Token {
	if lhs.Kind == token.Placemarker {
		return []*token.Token{rhs}
	}
	if rhs.Kind == token.Placemarker {
		return []*token.Token{lhs}
	}
	t, ok := lexer.Single(lhs.Text + rhs.Text)
	if !ok {
		e.report(site, diag.InvalidPaste, "pasting %q and %q does not give a valid preprocessing token", lhs.Text, rhs.Text)
		return []*token.Token{lhs, rhs}
	}
	t.File, t.Pos, t.Space = lhs.File, lhs.Pos, lhs.Space
	t.Hide = lhs.Hide.Intersect(rhs.Hide)
	t.Expansion = exp
	return []*token.Token{t}
}

// expandArg expands an argument in isolation, as if it were the whole input.
func (e *expander) expandArg(arg []*token.Token) []*token.Token {
	if len(arg) == 0 {
		return nil
	}
	sub := e.r.newExpander(e.cond)
	sub.push(arg)
	res := sub.expand()
	if sub.failed {
		e.failed = true
	}
	return res
}

func paramIndex(m *macro.Macro, t *token.Token) int {
	if t.Kind != token.Ident {
		return -1
	}
	return m.ParamIndex(t.Text)
}

func placemarker(at *token.Token) *token.Token {
	return &token.Token{Kind: token.Placemarker, File: at.File, Pos: at.Pos}
}

// appendArg appends copies of arg; the first copy takes the given Space.
func appendArg(out, arg []*token.Token, space bool) []*token.Token {
	for i, t := range arg {
		c := t.Copy()
		if i == 0 {
			c.Space = space
		}
		out = append(out, c)
	}
	return out
}

// stringize spells the argument as written as one string literal. Runs of
// whitespace become a single space; quotes and backslashes inside string and
// character literals are escaped.
func stringize(arg []*token.Token, hash *token.Token, exp *token.Expansion) *token.Token {
	var b strings.Builder
	b.WriteByte('"')
	for i, t := range arg {
		if i > 0 && t.Space {
			b.WriteByte(' ')
		}
		if t.Kind != token.String && t.Kind != token.Char {
			b.WriteString(t.Text)
			continue
		}
		for j := 0; j < len(t.Text); j++ {
			if c := t.Text[j]; c == '"' || c == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(t.Text[j])
		}
	}
	b.WriteByte('"')
	return &token.Token{
		Kind:      token.String,
		Text:      b.String(),
		File:      hash.File,
		Pos:       hash.Pos,
		Space:     hash.Space,
		Expansion: exp,
	}
}
