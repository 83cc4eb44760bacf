package preprocessor

import (
	"context"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/fwessels/cppx/internal/diag"
	"github.com/fwessels/cppx/internal/expr"
	"github.com/fwessels/cppx/internal/macro"
	"github.com/fwessels/cppx/internal/token"
)

var builtinDirectives = map[string]bool{
	"define":  true,
	"undef":   true,
	"include": true,
	"if":      true,
	"ifdef":   true,
	"ifndef":  true,
	"elif":    true,
	"else":    true,
	"endif":   true,
	"error":   true,
	"warning": true,
	"pragma":  true,
	"line":    true,
}

// directive dispatches one directive line. Conditional directives are
// handled everywhere; everything else only in active regions.
func (r *run) directive(s *source, line []*token.Token) {
	toks, nl := splitNewline(line)
	if len(toks) == 1 {
		return // null directive
	}
	hash, name, args := toks[0], toks[1], toks[2:]
	active := s.cond.Active()

	if name.Kind == token.Number {
		// GNU line marker: # 12 "file" flags...
		if active {
			r.lineDirective(s, name, toks[1:], nl, true)
		}
		return
	}
	if name.Kind != token.Ident {
		if active {
			r.report(diag.Error, diag.MalformedDirective, name.Position(), "invalid preprocessing directive")
		}
		return
	}
	r.log.V(1).Info("directive", "name", name.Text, "pos", name.Position().String(), "active", active)

	switch name.Text {
	case "if":
		v := false
		if active {
			v = r.evalIf(name, args)
		}
		s.cond.Push(v, hash.Position())
		return

	case "ifdef", "ifndef":
		v := false
		if active {
			if id, ok := r.macroName(name, args); ok {
				v = r.macros.Defined(id) == (name.Text == "ifdef")
			}
		}
		s.cond.Push(v, hash.Position())
		return

	case "elif":
		switch {
		case s.cond.Depth() == 0:
			r.report(diag.Error, diag.StrayConditional, name.Position(), "#elif without #if")
		case s.cond.SawElse():
			r.report(diag.Error, diag.StrayConditional, name.Position(), "#elif after #else")
		case s.cond.NeedsCondition():
			s.cond.Elif(r.evalIf(name, args))
		default:
			s.cond.Elif(false)
		}
		return

	case "else":
		switch {
		case s.cond.Depth() == 0:
			r.report(diag.Error, diag.StrayConditional, name.Position(), "#else without #if")
		case s.cond.SawElse():
			r.report(diag.Error, diag.StrayConditional, name.Position(), "#else after #else")
		default:
			s.cond.Else()
		}
		return

	case "endif":
		if s.cond.Depth() == 0 {
			r.report(diag.Error, diag.StrayConditional, name.Position(), "#endif without #if")
			return
		}
		s.cond.Pop()
		return
	}

	if !active {
		return
	}

	switch name.Text {
	case "define":
		if len(args) == 0 {
			r.report(diag.Error, diag.MalformedDirective, name.Position(), "no macro name given in #define directive")
			return
		}
		m, err := macro.Parse(args[0], args[1:])
		if err != nil {
			r.syntaxError(name, err)
			return
		}
		if err := r.define(m, args[0].Position()); err != nil {
			r.report(diag.Error, diag.MalformedDirective, args[0].Position(), "%v", err)
		}

	case "undef":
		id, ok := r.macroName(name, args)
		if !ok {
			return
		}
		if !r.macros.Undef(id) {
			r.log.V(1).Info("undef of unknown macro", "name", id)
		}

	case "include":
		r.include(s, name, args, nl)

	case "error":
		r.fatal(diag.UserError, name.Position(), "#error %s", token.Join(args))

	case "warning":
		r.report(diag.Warning, diag.UserWarning, name.Position(), "#warning %s", token.Join(args))

	case "pragma":
		if len(args) == 1 && args[0].Is(token.Ident, "once") {
			r.once[s.name] = true
			return
		}
		if !r.p.opts.DiscardPragmas {
			r.emit(line...)
			if nl == nil {
				r.emit(&token.Token{Kind: token.Newline, Text: "\n"})
			}
		}

	case "line":
		r.lineDirective(s, name, args, nl, false)

	default:
		h, ok := r.p.handlers[name.Text]
		if !ok {
			r.report(diag.Error, diag.UnknownDirective, name.Position(), "invalid preprocessing directive #%s", name.Text)
			return
		}
		r.handle(h, line)
	}
}

// macroName checks the operand of #ifdef, #ifndef and #undef.
func (r *run) macroName(dir *token.Token, args []*token.Token) (string, bool) {
	switch {
	case len(args) == 0:
		r.report(diag.Error, diag.MalformedDirective, dir.Position(), "no macro name given in #%s directive", dir.Text)
	case args[0].Kind != token.Ident:
		r.report(diag.Error, diag.MalformedDirective, args[0].Position(), "macro names must be identifiers")
	case len(args) > 1:
		r.report(diag.Error, diag.MalformedDirective, args[1].Position(), "extra tokens at end of #%s directive", dir.Text)
	default:
		return args[0].Text, true
	}
	return "", false
}

func (r *run) syntaxError(dir *token.Token, err error) {
	pos := dir.Position()
	if se, ok := err.(*macro.SyntaxError); ok && se.Tok != nil {
		pos = se.Tok.Position()
	}
	r.report(diag.Error, diag.MalformedDirective, pos, "%v", err)
}

// evalIf expands and evaluates a #if or #elif condition. Errors make the
// condition false.
func (r *run) evalIf(dir *token.Token, args []*token.Token) bool {
	toks, ok := r.expandTokens(args, true)
	if !ok {
		return false
	}
	v, err := expr.True(toks)
	if err != nil {
		pos := dir.Position()
		if ee, ok := err.(*expr.Error); ok && ee.Tok != nil {
			pos = ee.Tok.Site().Position()
		}
		r.report(diag.Error, diag.InvalidConstantExpr, pos, "%v", err)
		return false
	}
	return v
}

// lineDirective handles #line and GNU line markers. Positions reported for
// the following lines are remapped through the file's line table.
func (r *run) lineDirective(s *source, dir *token.Token, args []*token.Token, nl *token.Token, marker bool) {
	if !marker {
		args, _ = r.expandTokens(args, false)
	}
	if len(args) == 0 || args[0].Kind != token.Number {
		r.report(diag.Error, diag.MalformedDirective, dir.Position(), "#line directive requires a positive integer argument")
		return
	}
	n, err := strconv.ParseUint(args[0].Text, 10, 31)
	if err != nil || n == 0 {
		r.report(diag.Error, diag.MalformedDirective, args[0].Position(), "%q after #line is not a positive integer", args[0].Text)
		return
	}
	filename := dir.Position().Filename
	rest := args[1:]
	if len(rest) > 0 {
		if rest[0].Kind != token.String || rest[0].Text[0] != '"' {
			r.report(diag.Error, diag.MalformedDirective, rest[0].Position(), "invalid filename %s", rest[0].Text)
			return
		}
		filename = unquote(rest[0].Text)
		rest = rest[1:]
	}
	if len(rest) > 0 && !marker {
		r.report(diag.Warning, diag.MalformedDirective, rest[0].Position(), "extra tokens at end of #line directive")
	}
	if nl == nil {
		return
	}
	s.file.AddLineInfo(s.file.Offset(nl.Pos)+1, filename, int(n))
}

func unquote(s string) string {
	if len(s) >= 2 {
		s = s[1 : len(s)-1]
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		out = append(out, s[i])
	}
	return string(out)
}

// ---------------- Registered directives ----------------

// Handler implements a directive that is not built in. Handlers run only in
// active regions.
type Handler interface {
	Handle(d *Directive) error
}

type HandlerFunc func(d *Directive) error

func (f HandlerFunc) Handle(d *Directive) error { return f(d) }

// Directive is what a handler sees of one directive line and the run it is
// part of. It must not be used after the handler returns.
type Directive struct {
	Name string
	// Tok is the directive name token, Args the rest of the line.
	Tok  *token.Token
	Args []*token.Token

	r      *run
	line   []*token.Token
	live   bool
	nested bool
}

func (d *Directive) usable() error {
	if !d.live || d.nested {
		return ErrHandlerReentry
	}
	return nil
}

func (d *Directive) Pos() token.Position { return d.Tok.Position() }

func (d *Directive) Logger() logr.Logger { return d.r.log.WithValues("directive", d.Name) }

// Leading reports whether the directive is the first non-blank line of the
// translation unit.
func (d *Directive) Leading() bool { return len(d.r.sources) == 1 && d.r.leading == 1 }

// Emit appends tokens to the output.
func (d *Directive) Emit(toks ...*token.Token) error {
	if err := d.usable(); err != nil {
		return err
	}
	d.r.emit(toks...)
	return nil
}

// PassThrough copies the directive line to the output unchanged.
func (d *Directive) PassThrough() error {
	if err := d.usable(); err != nil {
		return err
	}
	d.r.emit(d.line...)
	if _, nl := splitNewline(d.line); nl == nil {
		d.r.emit(&token.Token{Kind: token.Newline, Text: "\n"})
	}
	return nil
}

func (d *Directive) Define(m *macro.Macro) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.r.define(m, d.Pos())
}

// DefineText defines a macro from text, as a -D option would.
func (d *Directive) DefineText(name, body string) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.r.defineText(name, body)
}

func (d *Directive) Undef(name string) error {
	if err := d.usable(); err != nil {
		return err
	}
	d.r.macros.Undef(name)
	return nil
}

func (d *Directive) Lookup(name string) (*macro.Macro, bool) {
	return d.r.macros.Lookup(name)
}

// Expand macro-expands toks with the current definitions.
func (d *Directive) Expand(toks []*token.Token) []*token.Token {
	out, _ := d.r.expandTokens(toks, false)
	return out
}

// Report records a diagnostic at the directive.
func (d *Directive) Report(sev diag.Severity, kind diag.Kind, format string, args ...interface{}) {
	d.r.report(sev, kind, d.Pos(), format, args...)
}

// Preprocess runs src through the preprocessor against a copy of the current
// macro table. The run's own state is not touched, and the Directive cannot
// modify it until Preprocess returns.
func (d *Directive) Preprocess(ctx context.Context, name string, src []byte) (*Result, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}
	d.nested = true
	defer func() { d.nested = false }()

	nr := d.r.p.newRun(ctx, name, d.r.macros.Clone())
	nr.counter = d.r.counter
	nr.rebindBuiltins()
	nr.process(nr.newSource(name, src))
	d.r.counter = nr.counter
	return nr.result(), nr.err
}

func (r *run) handle(h Handler, line []*token.Token) {
	toks, _ := splitNewline(line)
	d := &Directive{
		Name: toks[1].Text,
		Tok:  toks[1],
		Args: toks[2:],
		r:    r,
		line: line,
		live: true,
	}
	err := h.Handle(d)
	d.live = false
	if err != nil {
		r.fail(diag.HandlerError, d.Pos(), err)
	}
}
